package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/exchange/paper"
	"crypto-trade-desk/internal/storage/memory"
)

func TestCollector_CollectCandles(t *testing.T) {
	ex := paper.New()
	ex.SetPrice("BTC/USDT", decimal.NewFromInt(50000))
	ex.SetPrice("ETH/USDT", decimal.NewFromInt(3000))

	candles := memory.NewCandleStore()
	collector := NewCollector(ex, candles, memory.NewSentimentStore(), nil, Config{
		Symbols:    []string{"BTC/USDT", "ETH/USDT"},
		Timeframes: []string{"1h"},
		Limit:      10,
	}, nil)

	ctx := context.Background()
	require.NoError(t, collector.CollectCandles(ctx))

	got, err := candles.GetRecent(ctx, "BTC/USDT", "1h", 0)
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assert.True(t, got[0].Close.Equal(decimal.NewFromInt(50000)))

	got, err = candles.GetRecent(ctx, "ETH/USDT", "1h", 0)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestCollector_CollectCandlesPartialFailure(t *testing.T) {
	ex := paper.New()
	// Only BTC has a price; ETH klines fail.
	ex.SetPrice("BTC/USDT", decimal.NewFromInt(50000))

	candles := memory.NewCandleStore()
	collector := NewCollector(ex, candles, memory.NewSentimentStore(), nil, Config{
		Symbols:    []string{"ETH/USDT", "BTC/USDT"},
		Timeframes: []string{"1h"},
		Limit:      5,
	}, nil)

	ctx := context.Background()
	err := collector.CollectCandles(ctx)
	require.Error(t, err)

	// The failing symbol did not block the healthy one.
	got, err2 := candles.GetRecent(ctx, "BTC/USDT", "1h", 0)
	require.NoError(t, err2)
	assert.Len(t, got, 5)
}

func TestCollector_CollectSentiment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fng/", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"value": "22", "value_classification": "Extreme Fear", "timestamp": "1700000000"},
			},
		})
	}))
	defer server.Close()

	fng := NewFearGreedClient()
	fng.http.SetBaseURL(server.URL)

	sentiment := memory.NewSentimentStore()
	collector := NewCollector(paper.New(), memory.NewCandleStore(), sentiment, fng, Config{}, nil)

	ctx := context.Background()
	require.NoError(t, collector.CollectSentiment(ctx))

	point, err := sentiment.Latest(ctx, domain.SentimentSourceFearGreed, "")
	require.NoError(t, err)
	assert.True(t, point.Value.Equal(decimal.NewFromInt(22)))
	assert.Equal(t, "Extreme Fear", point.Classification)
	assert.NotEmpty(t, point.RawData)
}

func TestCollector_CollectSentimentWithoutClient(t *testing.T) {
	collector := NewCollector(paper.New(), memory.NewCandleStore(), memory.NewSentimentStore(), nil, Config{}, nil)
	assert.NoError(t, collector.CollectSentiment(context.Background()))
}

func TestFearGreedClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer server.Close()

	fng := NewFearGreedClient()
	fng.http.SetBaseURL(server.URL)

	_, err := fng.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data")
}

func TestFearGreedClient_BadValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"value": "not-a-number", "value_classification": "Fear", "timestamp": "0"},
			},
		})
	}))
	defer server.Close()

	fng := NewFearGreedClient()
	fng.http.SetBaseURL(server.URL)

	_, err := fng.Fetch(context.Background())
	assert.Error(t, err)
}
