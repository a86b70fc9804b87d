package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by trade id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if the id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.ID] = &copy
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, id string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *t
	return &copy, nil
}

// ListOpen retrieves all OPEN trades, oldest first.
func (s *TradeStore) ListOpen(_ context.Context) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Status == domain.TradeStatusOpen {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].OpenedAt.Equal(result[j].OpenedAt) {
			return result[i].OpenedAt.Before(result[j].OpenedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// CountOpen returns the number of OPEN trades.
func (s *TradeStore) CountOpen(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, t := range s.data {
		if t.Status == domain.TradeStatusOpen {
			count++
		}
	}
	return count, nil
}

// Close settles an OPEN trade. Returns false without error when the trade
// is already closed.
func (s *TradeStore) Close(_ context.Context, id string, exitPrice decimal.Decimal, status domain.TradeStatus, pnlAmount, pnlPercentage decimal.Decimal, now time.Time) (bool, error) {
	if !status.ClosesTrade() {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[id]
	if !exists || t.Status != domain.TradeStatusOpen {
		return false, nil
	}

	t.ExitPrice = &exitPrice
	t.Status = status
	t.PnlAmount = &pnlAmount
	t.PnlPercentage = &pnlPercentage
	closedAt := now
	t.ClosedAt = &closedAt
	t.UpdatedAt = now
	return true, nil
}

// TotalPnl sums realized P&L across closed trades.
func (s *TradeStore) TotalPnl(_ context.Context, since *time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, t := range s.data {
		if !t.Status.ClosesTrade() || t.PnlAmount == nil {
			continue
		}
		if since != nil && (t.ClosedAt == nil || t.ClosedAt.Before(*since)) {
			continue
		}
		total = total.Add(*t.PnlAmount)
	}
	return total, nil
}

var _ storage.TradeStore = (*TradeStore)(nil)
