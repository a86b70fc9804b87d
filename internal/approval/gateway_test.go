package approval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage/memory"
)

func insertPendingSignal(t *testing.T, store *memory.SignalStore) *domain.Signal {
	t.Helper()

	now := time.Now().UTC()
	expires := now.Add(4 * time.Hour)
	sig := &domain.Signal{
		ID:              uuid.NewString(),
		Symbol:          "BTC/USDT",
		SignalType:      domain.SignalTypeBuy,
		Confidence:      decimal.NewFromInt(92),
		EntryPrice:      decimal.NewFromInt(50000),
		StopLossPrice:   decimal.NewFromInt(49000),
		TakeProfitPrice: decimal.NewFromInt(52000),
		Status:          domain.SignalStatusPending,
		ExpiresAt:       &expires,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, store.Insert(context.Background(), sig))
	return sig
}

func TestGateway_Approve(t *testing.T) {
	store := memory.NewSignalStore()
	gateway := NewGateway(store, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	sig := insertPendingSignal(t, store)

	applied, err := gateway.Approve(ctx, sig.ID, "operator-1", now)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := store.GetByID(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusApproved, got.Status)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, "operator-1", *got.ApprovedBy)
}

func TestGateway_Reject(t *testing.T) {
	store := memory.NewSignalStore()
	gateway := NewGateway(store, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	sig := insertPendingSignal(t, store)

	applied, err := gateway.Reject(ctx, sig.ID, "operator-1", now)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := store.GetByID(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusRejected, got.Status)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, "operator-1", *got.ApprovedBy)
}

func TestGateway_DoubleDecisionIsBenign(t *testing.T) {
	store := memory.NewSignalStore()
	gateway := NewGateway(store, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	sig := insertPendingSignal(t, store)

	applied, err := gateway.Approve(ctx, sig.ID, "operator-1", now)
	require.NoError(t, err)
	require.True(t, applied)

	// A second decision on a decided signal is reported, not errored.
	applied, err = gateway.Reject(ctx, sig.ID, "operator-2", now)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = gateway.Approve(ctx, sig.ID, "operator-2", now)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := store.GetByID(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusApproved, got.Status)
	assert.Equal(t, "operator-1", *got.ApprovedBy)
}

func TestGateway_ExpiredSignalCannotBeApproved(t *testing.T) {
	store := memory.NewSignalStore()
	gateway := NewGateway(store, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	sig := insertPendingSignal(t, store)

	// The sweeper wins the race: deadline already passed.
	expired := *sig
	expired.ID = uuid.NewString()
	expired.ExpiresAt = ptr(now.Add(-time.Minute))
	require.NoError(t, store.Insert(ctx, &expired))

	swept, err := store.ExpirePending(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), swept)

	applied, err := gateway.Approve(ctx, expired.ID, "operator-1", now)
	require.NoError(t, err)
	assert.False(t, applied)

	// The signal with a live deadline is untouched.
	applied, err = gateway.Approve(ctx, sig.ID, "operator-1", now)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestGateway_UnknownSignal(t *testing.T) {
	store := memory.NewSignalStore()
	gateway := NewGateway(store, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	applied, err := gateway.Approve(ctx, uuid.NewString(), "operator-1", now)
	require.NoError(t, err)
	assert.False(t, applied)
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
