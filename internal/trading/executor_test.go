package trading

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/exchange/paper"
	"crypto-trade-desk/internal/risk"
	"crypto-trade-desk/internal/storage/memory"
)

type executorFixture struct {
	signals   *memory.SignalStore
	trades    *memory.TradeStore
	portfolio *memory.PortfolioStore
	exchange  *paper.Client
	executor  *Executor
}

func newExecutorFixture(t *testing.T, cfg ExecutorConfig) *executorFixture {
	t.Helper()
	f := &executorFixture{
		signals:   memory.NewSignalStore(),
		trades:    memory.NewTradeStore(),
		portfolio: memory.NewPortfolioStore(),
		exchange:  paper.New(),
	}
	f.executor = NewExecutor(f.signals, f.trades, f.portfolio, f.exchange, cfg, nil)
	return f
}

func (f *executorFixture) seedBalance(t *testing.T, available int64) {
	t.Helper()
	err := f.portfolio.Append(context.Background(), &domain.PortfolioSnapshot{
		ID:               uuid.NewString(),
		Asset:            "USDT",
		TotalBalance:     decimal.NewFromInt(available),
		AvailableBalance: decimal.NewFromInt(available),
		LockedBalance:    decimal.Zero,
		Timestamp:        time.Now().UTC(),
		CreatedAt:        time.Now().UTC(),
	})
	require.NoError(t, err)
}

func (f *executorFixture) seedApprovedSignal(t *testing.T) *domain.Signal {
	t.Helper()
	now := time.Now().UTC()
	operator := "alice"
	sig := &domain.Signal{
		ID:              uuid.NewString(),
		Symbol:          "BTC/USDT",
		SignalType:      domain.SignalTypeBuy,
		Confidence:      decimal.NewFromInt(95),
		EntryPrice:      decimal.NewFromInt(50000),
		StopLossPrice:   decimal.NewFromInt(49000),
		TakeProfitPrice: decimal.NewFromInt(52000),
		Status:          domain.SignalStatusApproved,
		ApprovedBy:      &operator,
		ApprovedAt:      &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.signals.Insert(context.Background(), sig))
	return sig
}

func TestExecutor_Execute(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{})
	f.seedBalance(t, 10000)
	sig := f.seedApprovedSignal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	trade, err := f.executor.Execute(ctx, sig.ID, now)
	require.NoError(t, err)

	// 10000 * 0.02 / 1000 = 0.2
	assert.True(t, trade.Quantity.Equal(decimal.RequireFromString("0.2")), "got %s", trade.Quantity)
	assert.Equal(t, domain.TradeStatusOpen, trade.Status)
	assert.Equal(t, sig.ID, *trade.SignalID)
	assert.NotNil(t, trade.ExchangeOrderID)
	assert.NotNil(t, trade.SLOrderID)
	assert.NotNil(t, trade.TPOrderID)

	// The signal is consumed.
	got, err := f.signals.GetByID(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusExecuted, got.Status)

	// The order reached the exchange with the signal's levels.
	orders := f.exchange.PlacedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, "BTC/USDT", orders[0].Symbol)
	assert.True(t, orders[0].StopLossPrice.Equal(decimal.NewFromInt(49000)))
	assert.True(t, orders[0].TakeProfitPrice.Equal(decimal.NewFromInt(52000)))

	// The trade is persisted.
	open, err := f.trades.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, trade.ID, open[0].ID)
}

func TestExecutor_ExecuteTwiceIsRejected(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{})
	f.seedBalance(t, 10000)
	sig := f.seedApprovedSignal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := f.executor.Execute(ctx, sig.ID, now)
	require.NoError(t, err)

	_, err = f.executor.Execute(ctx, sig.ID, now)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	open, err := f.trades.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestExecutor_ExecutePendingSignalIsRejected(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{})
	f.seedBalance(t, 10000)
	sig := f.seedApprovedSignal(t)
	sig2 := *sig
	sig2.ID = uuid.NewString()
	sig2.Status = domain.SignalStatusPending
	sig2.ApprovedBy = nil
	sig2.ApprovedAt = nil
	ctx := context.Background()
	require.NoError(t, f.signals.Insert(ctx, &sig2))

	_, err := f.executor.Execute(ctx, sig2.ID, time.Now().UTC())
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	got, err := f.signals.GetByID(ctx, sig2.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusPending, got.Status)
}

func TestExecutor_SizingFailureConsumesSignal(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{MaxOpenPositions: 1})
	f.seedBalance(t, 10000)
	ctx := context.Background()
	now := time.Now().UTC()

	// Occupy the only slot.
	require.NoError(t, f.trades.Insert(ctx, &domain.Trade{
		ID:              uuid.NewString(),
		Symbol:          "ETH/USDT",
		Side:            domain.SignalTypeBuy,
		EntryPrice:      decimal.NewFromInt(3000),
		Quantity:        decimal.NewFromInt(1),
		StopLossPrice:   decimal.NewFromInt(2900),
		TakeProfitPrice: decimal.NewFromInt(3200),
		Status:          domain.TradeStatusOpen,
		OpenedAt:        now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}))

	sig := f.seedApprovedSignal(t)
	_, err := f.executor.Execute(ctx, sig.ID, now)
	assert.ErrorIs(t, err, risk.ErrCapacityExceeded)

	// The signal must not drop back into the executable pool.
	got, err := f.signals.GetByID(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusExecuted, got.Status)

	assert.Empty(t, f.exchange.PlacedOrders())
}

func TestExecutor_BrokerFailure(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{})
	f.seedBalance(t, 10000)
	f.exchange.FailPlacements(true)
	sig := f.seedApprovedSignal(t)
	ctx := context.Background()

	_, err := f.executor.Execute(ctx, sig.ID, time.Now().UTC())
	assert.ErrorIs(t, err, ErrBrokerPlacement)

	// Claimed but no trade recorded; the operator has to reconcile.
	got, err := f.signals.GetByID(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusExecuted, got.Status)

	open, err := f.trades.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestExecutor_LotSizeApplied(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{
		LotSizes: map[string]decimal.Decimal{
			"BTC/USDT": decimal.RequireFromString("0.15"),
		},
	})
	f.seedBalance(t, 10000)
	sig := f.seedApprovedSignal(t)

	trade, err := f.executor.Execute(context.Background(), sig.ID, time.Now().UTC())
	require.NoError(t, err)

	// 0.2 floored to the 0.15 step.
	assert.True(t, trade.Quantity.Equal(decimal.RequireFromString("0.15")), "got %s", trade.Quantity)
}

func TestExecutor_ExecuteApproved(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{})
	f.seedBalance(t, 10000)
	first := f.seedApprovedSignal(t)
	second := f.seedApprovedSignal(t)
	ctx := context.Background()

	n, err := f.executor.ExecuteApproved(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{first.ID, second.ID} {
		got, err := f.signals.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.SignalStatusExecuted, got.Status)
	}

	open, err := f.trades.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestExecutor_ExecuteApprovedStopsAtCapacity(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{MaxOpenPositions: 1})
	f.seedBalance(t, 10000)
	f.seedApprovedSignal(t)
	second := f.seedApprovedSignal(t)
	third := f.seedApprovedSignal(t)
	ctx := context.Background()

	n, err := f.executor.ExecuteApproved(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The second signal burned its claim discovering the book was full, but
	// the rest stay APPROVED for the next cycle.
	got, err := f.signals.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusExecuted, got.Status)

	got, err = f.signals.GetByID(ctx, third.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusApproved, got.Status)
}
