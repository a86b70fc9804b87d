package memory

import (
	"context"
	"sync"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage"
)

// PortfolioStore is an in-memory implementation of storage.PortfolioStore.
type PortfolioStore struct {
	mu   sync.RWMutex
	data []*domain.PortfolioSnapshot // append order preserved
	ids  map[string]struct{}
}

// NewPortfolioStore creates a new in-memory portfolio store.
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{
		ids: make(map[string]struct{}),
	}
}

// Append records a new balance snapshot. Returns ErrDuplicateKey if the id exists.
func (s *PortfolioStore) Append(_ context.Context, snap *domain.PortfolioSnapshot) error {
	if snap == nil || snap.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[snap.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *snap
	s.data = append(s.data, &copy)
	s.ids[snap.ID] = struct{}{}
	return nil
}

// Latest retrieves the most recent snapshot for an asset by timestamp.
func (s *PortfolioStore) Latest(_ context.Context, asset string) (*domain.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.PortfolioSnapshot
	for _, snap := range s.data {
		if snap.Asset != asset {
			continue
		}
		if latest == nil || snap.Timestamp.After(latest.Timestamp) {
			latest = snap
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

var _ storage.PortfolioStore = (*PortfolioStore)(nil)
