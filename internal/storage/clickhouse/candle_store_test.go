package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-trade-desk/internal/domain"
)

func createTestCandle(symbol, timeframe string, ts time.Time, close float64) *domain.Candle {
	return &domain.Candle{
		Symbol:    symbol,
		Timeframe: timeframe,
		Timestamp: ts,
		Open:      decimal.NewFromFloat(close - 10),
		High:      decimal.NewFromFloat(close + 20),
		Low:       decimal.NewFromFloat(close - 20),
		Close:     decimal.NewFromFloat(close),
		Volume:    decimal.NewFromInt(100),
	}
}

func TestCandleStore_InsertBulkAndGetRecent(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	base := time.Now().UTC().Truncate(time.Hour)

	var candles []*domain.Candle
	for i := 0; i < 5; i++ {
		candles = append(candles, createTestCandle("BTC/USDT", "1h", base.Add(time.Duration(i-5)*time.Hour), 50000+float64(i)))
	}
	candles = append(candles, createTestCandle("ETH/USDT", "1h", base, 3000))
	require.NoError(t, store.InsertBulk(ctx, candles))

	recent, err := store.GetRecent(ctx, "BTC/USDT", "1h", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// Trailing window in chronological order.
	assert.InDelta(t, 50002, recent[0].Close.InexactFloat64(), 1e-9)
	assert.InDelta(t, 50004, recent[2].Close.InexactFloat64(), 1e-9)
	assert.True(t, recent[0].Timestamp.Before(recent[1].Timestamp))

	// Other symbols stay isolated.
	other, err := store.GetRecent(ctx, "ETH/USDT", "1h", 10)
	require.NoError(t, err)
	require.Len(t, other, 1)
}

func TestCandleStore_ReInsertReplaces(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	ts := time.Now().UTC().Truncate(time.Hour)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Candle{
		createTestCandle("BTC/USDT", "1h", ts, 50000),
	}))
	// Re-collecting the same window with a corrected close.
	require.NoError(t, store.InsertBulk(ctx, []*domain.Candle{
		createTestCandle("BTC/USDT", "1h", ts, 50100),
	}))

	recent, err := store.GetRecent(ctx, "BTC/USDT", "1h", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.InDelta(t, 50100, recent[0].Close.InexactFloat64(), 1e-9)
}

func TestCandleStore_GetRecentEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	recent, err := store.GetRecent(ctx, "BTC/USDT", "1h", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
