package signals

import (
	"context"
	"fmt"
	"log"
	"time"

	"crypto-trade-desk/internal/observability"
	"crypto-trade-desk/internal/storage"
)

// Sweeper expires stale PENDING signals. It races operator approvals through
// the store's conditional updates; a signal decided between two sweeps is
// simply not swept.
type Sweeper struct {
	store    storage.SignalStore
	interval time.Duration
	logger   *log.Logger
}

// NewSweeper creates a sweeper with the given check interval.
func NewSweeper(store storage.SignalStore, interval time.Duration, logger *log.Logger) *Sweeper {
	if interval == 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// SweepOnce expires everything past its deadline as of now.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int64, error) {
	swept, err := s.store.ExpirePending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("expire pending signals: %w", err)
	}
	if swept > 0 {
		observability.RecordSignalsExpired(swept)
		s.logger.Printf("[sweeper] expired %d pending signals", swept)
	}
	return swept, nil
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Printf("[sweeper] running every %s", s.interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, time.Now().UTC()); err != nil {
				s.logger.Printf("[sweeper] sweep failed: %v", err)
			}
		}
	}
}
