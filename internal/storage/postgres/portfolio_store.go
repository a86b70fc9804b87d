package postgres

import (
	"context"
	"fmt"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage"
)

// PortfolioStore implements storage.PortfolioStore using PostgreSQL.
// Snapshots are append-only; history is never rewritten.
type PortfolioStore struct {
	pool *Pool
}

// NewPortfolioStore creates a new PortfolioStore.
func NewPortfolioStore(pool *Pool) *PortfolioStore {
	return &PortfolioStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PortfolioStore = (*PortfolioStore)(nil)

// Append records a new balance snapshot. Returns ErrDuplicateKey if the id exists.
func (s *PortfolioStore) Append(ctx context.Context, snap *domain.PortfolioSnapshot) error {
	query := `
		INSERT INTO portfolio (
			id, asset, total_balance, available_balance, locked_balance,
			timestamp, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		snap.ID, snap.Asset, snap.TotalBalance, snap.AvailableBalance, snap.LockedBalance,
		snap.Timestamp, snap.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("append portfolio snapshot: %w", err)
	}
	return nil
}

// Latest retrieves the most recent snapshot for an asset. Returns
// ErrNotFound if the asset has no history yet.
func (s *PortfolioStore) Latest(ctx context.Context, asset string) (*domain.PortfolioSnapshot, error) {
	query := `
		SELECT id, asset, total_balance, available_balance, locked_balance,
		       timestamp, created_at
		FROM portfolio
		WHERE asset = $1
		ORDER BY timestamp DESC, created_at DESC
		LIMIT 1
	`

	var snap domain.PortfolioSnapshot
	err := s.pool.QueryRow(ctx, query, asset).Scan(
		&snap.ID, &snap.Asset, &snap.TotalBalance, &snap.AvailableBalance, &snap.LockedBalance,
		&snap.Timestamp, &snap.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest portfolio snapshot: %w", err)
	}
	return &snap, nil
}
