// Package approval applies operator decisions to pending signals.
package approval

import (
	"context"
	"fmt"
	"log"
	"time"

	"crypto-trade-desk/internal/observability"
	"crypto-trade-desk/internal/storage"
)

// Gateway funnels every operator decision through the signal store's
// conditional transitions. Approve and Reject report false when the signal
// was decided or expired first; callers treat that as a benign outcome, not
// a failure.
type Gateway struct {
	signals storage.SignalStore
	logger  *log.Logger
}

// NewGateway creates a new approval gateway.
func NewGateway(signals storage.SignalStore, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{signals: signals, logger: logger}
}

// Approve marks a pending signal APPROVED on behalf of an operator.
func (g *Gateway) Approve(ctx context.Context, signalID, operator string, now time.Time) (bool, error) {
	applied, err := g.signals.Approve(ctx, signalID, operator, now)
	if err != nil {
		return false, fmt.Errorf("approve signal %s: %w", signalID, err)
	}
	if !applied {
		g.logger.Printf("[approval] approve %s by %s lost the race, signal no longer pending", signalID, operator)
		return false, nil
	}

	observability.RecordSignalApproved()
	g.logger.Printf("[approval] signal %s approved by %s", signalID, operator)
	return true, nil
}

// Reject marks a pending signal REJECTED on behalf of an operator.
func (g *Gateway) Reject(ctx context.Context, signalID, operator string, now time.Time) (bool, error) {
	applied, err := g.signals.Reject(ctx, signalID, operator, now)
	if err != nil {
		return false, fmt.Errorf("reject signal %s: %w", signalID, err)
	}
	if !applied {
		g.logger.Printf("[approval] reject %s by %s lost the race, signal no longer pending", signalID, operator)
		return false, nil
	}

	observability.RecordSignalRejected()
	g.logger.Printf("[approval] signal %s rejected by %s", signalID, operator)
	return true, nil
}
