package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage"
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
	store := NewCandleStore()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Hour)

	var candles []*domain.Candle
	for i := 0; i < 5; i++ {
		candles = append(candles, createTestCandle("BTC/USDT", "1h", base.Add(time.Duration(i)*time.Hour), 50000+float64(i)))
	}
	candles = append(candles, createTestCandle("ETH/USDT", "1h", base, 3000))
	require.NoError(t, store.InsertBulk(ctx, candles))

	recent, err := store.GetRecent(ctx, "BTC/USDT", "1h", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// Oldest first, trailing window.
	assert.True(t, recent[0].Close.Equal(decimal.NewFromInt(50002)))
	assert.True(t, recent[2].Close.Equal(decimal.NewFromInt(50004)))
	assert.True(t, recent[0].Timestamp.Before(recent[1].Timestamp))
}

func TestCandleStore_InsertBulkUpserts(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()
	ts := time.Now().UTC().Truncate(time.Hour)

	first := createTestCandle("BTC/USDT", "1h", ts, 50000)
	require.NoError(t, store.InsertBulk(ctx, []*domain.Candle{first}))

	// Same key with a corrected close replaces the row.
	second := createTestCandle("BTC/USDT", "1h", ts, 50100)
	require.NoError(t, store.InsertBulk(ctx, []*domain.Candle{second}))

	recent, err := store.GetRecent(ctx, "BTC/USDT", "1h", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Close.Equal(decimal.NewFromInt(50100)))
}

func TestCandleStore_InsertBulkEmptyAndInvalid(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, nil))
	assert.ErrorIs(t, store.InsertBulk(ctx, []*domain.Candle{{}}), storage.ErrInvalidInput)
}

func TestCandleStore_GetRecentEmpty(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	recent, err := store.GetRecent(ctx, "BTC/USDT", "1h", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
