// Package portfolio records account balance snapshots and guards the
// total = available + locked identity.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/exchange"
	"crypto-trade-desk/internal/storage"
)

// ErrInconsistentBalance means total, available and locked do not reconcile
// within tolerance.
var ErrInconsistentBalance = errors.New("inconsistent balance")

// balanceTolerance absorbs fixed-point representation noise, one unit in the
// eighth fractional digit.
var balanceTolerance = decimal.New(1, -8)

// Tracker appends portfolio snapshots sourced from the exchange.
type Tracker struct {
	store    storage.PortfolioStore
	exchange exchange.Client
	logger   *log.Logger
}

// NewTracker creates a portfolio tracker.
func NewTracker(store storage.PortfolioStore, ex exchange.Client, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Default()
	}
	return &Tracker{store: store, exchange: ex, logger: logger}
}

// Snapshot validates and appends one balance observation.
func (t *Tracker) Snapshot(ctx context.Context, asset string, total, available, locked decimal.Decimal, now time.Time) (*domain.PortfolioSnapshot, error) {
	if available.IsNegative() || locked.IsNegative() {
		return nil, fmt.Errorf("%w: negative component, available=%s locked=%s",
			ErrInconsistentBalance, available, locked)
	}

	if total.Sub(available.Add(locked)).Abs().GreaterThan(balanceTolerance) {
		return nil, fmt.Errorf("%w: total=%s available=%s locked=%s",
			ErrInconsistentBalance, total, available, locked)
	}

	snap := &domain.PortfolioSnapshot{
		ID:               uuid.NewString(),
		Asset:            asset,
		TotalBalance:     total,
		AvailableBalance: available,
		LockedBalance:    locked,
		Timestamp:        now,
		CreatedAt:        now,
	}

	if err := t.store.Append(ctx, snap); err != nil {
		return nil, fmt.Errorf("append portfolio snapshot: %w", err)
	}
	return snap, nil
}

// Sync pulls the current balance for an asset from the exchange and records
// it as a snapshot.
func (t *Tracker) Sync(ctx context.Context, asset string, now time.Time) (*domain.PortfolioSnapshot, error) {
	balance, err := t.exchange.Balance(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("fetch %s balance: %w", asset, err)
	}

	snap, err := t.Snapshot(ctx, asset, balance.Total, balance.Free, balance.Locked, now)
	if err != nil {
		return nil, err
	}

	t.logger.Printf("[portfolio] %s total=%s available=%s locked=%s",
		asset, snap.TotalBalance, snap.AvailableBalance, snap.LockedBalance)
	return snap, nil
}

// Latest returns the most recent snapshot for an asset.
func (t *Tracker) Latest(ctx context.Context, asset string) (*domain.PortfolioSnapshot, error) {
	return t.store.Latest(ctx, asset)
}
