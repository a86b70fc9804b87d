package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
// Re-inserting a (symbol, timeframe, timestamp) key overwrites the previous
// row, matching the ClickHouse ReplacingMergeTree semantics.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Candle
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]*domain.Candle),
	}
}

// candleKey generates a unique key for a candle.
func candleKey(c *domain.Candle) string {
	return fmt.Sprintf("%s|%s|%d", c.Symbol, c.Timeframe, c.Timestamp.UnixNano())
}

// InsertBulk upserts a batch of candles.
func (s *CandleStore) InsertBulk(_ context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range candles {
		if c == nil || c.Symbol == "" || c.Timeframe == "" {
			return storage.ErrInvalidInput
		}
		copy := *c
		s.data[candleKey(c)] = &copy
	}
	return nil
}

// GetRecent retrieves the most recent candles for a symbol and timeframe,
// ordered oldest first.
func (s *CandleStore) GetRecent(_ context.Context, symbol, timeframe string, limit int) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if c.Symbol == symbol && c.Timeframe == timeframe {
			copy := *c
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}

	return result, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
