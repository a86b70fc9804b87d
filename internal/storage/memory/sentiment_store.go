package memory

import (
	"context"
	"sync"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage"
)

// SentimentStore is an in-memory implementation of storage.SentimentStore.
type SentimentStore struct {
	mu   sync.RWMutex
	data []*domain.SentimentPoint
}

// NewSentimentStore creates a new in-memory sentiment store.
func NewSentimentStore() *SentimentStore {
	return &SentimentStore{}
}

// Insert records a sentiment reading.
func (s *SentimentStore) Insert(_ context.Context, p *domain.SentimentPoint) error {
	if p == nil || p.Source == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.data = append(s.data, &copy)
	return nil
}

// Latest retrieves the most recent reading for a source and symbol. An empty
// symbol matches market-wide readings.
func (s *SentimentStore) Latest(_ context.Context, source domain.SentimentSource, symbol string) (*domain.SentimentPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.SentimentPoint
	for _, p := range s.data {
		if p.Source != source || p.Symbol != symbol {
			continue
		}
		if latest == nil || p.Timestamp.After(latest.Timestamp) {
			latest = p
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

var _ storage.SentimentStore = (*SentimentStore)(nil)
