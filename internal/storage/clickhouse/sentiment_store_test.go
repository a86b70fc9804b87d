package clickhouse

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

func TestSentimentStore_InsertAndLatest(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSentimentStore(conn)

	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.Insert(ctx, &domain.SentimentPoint{
		Source:         domain.SentimentSourceFearGreed,
		Timestamp:      base.Add(-time.Hour),
		Value:          decimal.NewFromInt(30),
		Classification: "Fear",
		RawData:        `{"value":"30"}`,
	}))
	require.NoError(t, store.Insert(ctx, &domain.SentimentPoint{
		Source:         domain.SentimentSourceFearGreed,
		Timestamp:      base,
		Value:          decimal.NewFromInt(55),
		Classification: "Neutral",
		RawData:        `{"value":"55"}`,
	}))
	require.NoError(t, store.Insert(ctx, &domain.SentimentPoint{
		Source:         domain.SentimentSourceCoingecko,
		Symbol:         "BTC/USDT",
		Timestamp:      base,
		Value:          decimal.NewFromInt(72),
		Classification: "positive",
	}))

	latest, err := store.Latest(ctx, domain.SentimentSourceFearGreed, "")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentSourceFearGreed, latest.Source)
	assert.InDelta(t, 55, latest.Value.InexactFloat64(), 1e-9)
	assert.Equal(t, "Neutral", latest.Classification)

	perSymbol, err := store.Latest(ctx, domain.SentimentSourceCoingecko, "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", perSymbol.Symbol)
	assert.InDelta(t, 72, perSymbol.Value.InexactFloat64(), 1e-9)
}

func TestSentimentStore_LatestNotFound(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSentimentStore(conn)

	_, err := store.Latest(ctx, domain.SentimentSourceFearGreed, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSentimentStore_InsertInvalid(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSentimentStore(conn)

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.SentimentPoint{}), storage.ErrInvalidInput)
}
