package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage"
)

func createTestSnapshot(asset string, ts time.Time) *domain.PortfolioSnapshot {
	return &domain.PortfolioSnapshot{
		ID:               uuid.NewString(),
		Asset:            asset,
		TotalBalance:     decimal.NewFromInt(10000),
		AvailableBalance: decimal.NewFromInt(9500),
		LockedBalance:    decimal.NewFromInt(500),
		Timestamp:        ts,
		CreatedAt:        ts,
	}
}

func TestPortfolioStore_AppendAndLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPortfolioStore(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)

	old := createTestSnapshot("USDT", base.Add(-time.Hour))
	old.TotalBalance = decimal.NewFromInt(9000)
	old.AvailableBalance = decimal.NewFromInt(9000)
	old.LockedBalance = decimal.Zero
	require.NoError(t, store.Append(ctx, old))

	newest := createTestSnapshot("USDT", base)
	require.NoError(t, store.Append(ctx, newest))

	other := createTestSnapshot("BTC", base)
	require.NoError(t, store.Append(ctx, other))

	latest, err := store.Latest(ctx, "USDT")
	require.NoError(t, err)
	assert.Equal(t, newest.ID, latest.ID)
	assert.True(t, newest.TotalBalance.Equal(latest.TotalBalance))
	assert.True(t, newest.AvailableBalance.Equal(latest.AvailableBalance))
	assert.True(t, newest.LockedBalance.Equal(latest.LockedBalance))
	assert.True(t, base.Equal(latest.Timestamp))
}

func TestPortfolioStore_LatestNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPortfolioStore(pool)

	_, err := store.Latest(ctx, "ETH")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPortfolioStore_AppendDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPortfolioStore(pool)

	snap := createTestSnapshot("USDT", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, store.Append(ctx, snap))

	err := store.Append(ctx, snap)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
