package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
// Conditional transitions run under the write lock, so they behave like the
// SQL conditional UPDATEs: exactly one concurrent caller wins.
type SignalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Signal // keyed by signal id
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string]*domain.Signal),
	}
}

// cloneSignal copies a signal so callers cannot mutate stored state.
func cloneSignal(sig *domain.Signal) *domain.Signal {
	copy := *sig
	if sig.TechnicalData != nil {
		copy.TechnicalData = make(map[string]any, len(sig.TechnicalData))
		for k, v := range sig.TechnicalData {
			copy.TechnicalData[k] = v
		}
	}
	return &copy
}

// Insert adds a new signal. Returns ErrDuplicateKey if the id exists.
func (s *SignalStore) Insert(_ context.Context, sig *domain.Signal) error {
	if sig == nil || sig.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sig.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[sig.ID] = cloneSignal(sig)
	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(_ context.Context, id string) (*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneSignal(sig), nil
}

// GetByTelegramMessageID retrieves the signal bound to an approval message.
func (s *SignalStore) GetByTelegramMessageID(_ context.Context, messageID int64) (*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sig := range s.data {
		if sig.TelegramMessageID != nil && *sig.TelegramMessageID == messageID {
			return cloneSignal(sig), nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListByStatus retrieves all signals with a given status, oldest first.
func (s *SignalStore) ListByStatus(_ context.Context, status domain.SignalStatus) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.data {
		if sig.Status == status {
			result = append(result, cloneSignal(sig))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// SetTelegramMessageID binds the approval message to a signal.
func (s *SignalStore) SetTelegramMessageID(_ context.Context, id string, messageID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}

	sig.TelegramMessageID = &messageID
	sig.UpdatedAt = now
	return nil
}

// Approve transitions a PENDING signal to APPROVED. Returns false without
// error when the signal is no longer PENDING.
func (s *SignalStore) Approve(_ context.Context, id, approvedBy string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, exists := s.data[id]
	if !exists || sig.Status != domain.SignalStatusPending {
		return false, nil
	}

	sig.Status = domain.SignalStatusApproved
	sig.ApprovedBy = &approvedBy
	approvedAt := now
	sig.ApprovedAt = &approvedAt
	sig.UpdatedAt = now
	return true, nil
}

// Reject transitions a PENDING signal to REJECTED, recording the operator.
func (s *SignalStore) Reject(_ context.Context, id, rejectedBy string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, exists := s.data[id]
	if !exists || sig.Status != domain.SignalStatusPending {
		return false, nil
	}

	sig.Status = domain.SignalStatusRejected
	sig.ApprovedBy = &rejectedBy
	sig.UpdatedAt = now
	return true, nil
}

// MarkExecuted transitions an APPROVED signal to EXECUTED.
func (s *SignalStore) MarkExecuted(_ context.Context, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, exists := s.data[id]
	if !exists || sig.Status != domain.SignalStatusApproved {
		return false, nil
	}

	sig.Status = domain.SignalStatusExecuted
	sig.UpdatedAt = now
	return true, nil
}

// ExpirePending moves every PENDING signal past its deadline to EXPIRED.
func (s *SignalStore) ExpirePending(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var swept int64
	for _, sig := range s.data {
		if sig.Status == domain.SignalStatusPending && sig.ExpiresAt != nil && sig.ExpiresAt.Before(now) {
			sig.Status = domain.SignalStatusExpired
			sig.UpdatedAt = now
			swept++
		}
	}
	return swept, nil
}

var _ storage.SignalStore = (*SignalStore)(nil)
