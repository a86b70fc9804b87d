package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
//
// Status transitions are expressed as conditional UPDATEs guarded by the
// current status, so concurrent writers (approval handler vs expiry sweeper)
// race safely: exactly one of them observes RowsAffected == 1.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

const signalColumns = `
	id, symbol, signal_type, confidence,
	entry_price, stop_loss_price, take_profit_price,
	status, analysis_summary, technical_data,
	telegram_message_id, approved_by, approved_at, expires_at,
	created_at, updated_at
`

// Insert adds a new signal. Returns ErrDuplicateKey if the id exists.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.Signal) error {
	query := `
		INSERT INTO signals (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := s.pool.Exec(ctx, query,
		sig.ID, sig.Symbol, sig.SignalType.String(), sig.Confidence,
		sig.EntryPrice, sig.StopLossPrice, sig.TakeProfitPrice,
		sig.Status.String(), sig.AnalysisSummary, sig.TechnicalData,
		sig.TelegramMessageID, sig.ApprovedBy, sig.ApprovedAt, sig.ExpiresAt,
		sig.CreatedAt, sig.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(ctx context.Context, id string) (*domain.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	sig, err := scanSignal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal by id: %w", err)
	}
	return sig, nil
}

// GetByTelegramMessageID retrieves the signal bound to an approval message.
// Returns ErrNotFound if no signal carries that message id.
func (s *SignalStore) GetByTelegramMessageID(ctx context.Context, messageID int64) (*domain.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE telegram_message_id = $1`

	row := s.pool.QueryRow(ctx, query, messageID)
	sig, err := scanSignal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal by telegram message id: %w", err)
	}
	return sig, nil
}

// ListByStatus retrieves all signals with a given status, oldest first.
func (s *SignalStore) ListByStatus(ctx context.Context, status domain.SignalStatus) ([]*domain.Signal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, status.String())
	if err != nil {
		return nil, fmt.Errorf("list signals by status: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// SetTelegramMessageID binds the approval message to a signal.
func (s *SignalStore) SetTelegramMessageID(ctx context.Context, id string, messageID int64, now time.Time) error {
	query := `
		UPDATE signals
		SET telegram_message_id = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, messageID, now)
	if err != nil {
		return fmt.Errorf("set signal telegram message id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Approve transitions a PENDING signal to APPROVED. Returns false without
// error when the signal is no longer PENDING (already decided or expired).
func (s *SignalStore) Approve(ctx context.Context, id, approvedBy string, now time.Time) (bool, error) {
	query := `
		UPDATE signals
		SET status = 'APPROVED', approved_by = $2, approved_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'PENDING'
	`

	tag, err := s.pool.Exec(ctx, query, id, approvedBy, now)
	if err != nil {
		return false, fmt.Errorf("approve signal: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Reject transitions a PENDING signal to REJECTED. The operator is recorded
// in approved_by for audit. Returns false when the signal is not PENDING.
func (s *SignalStore) Reject(ctx context.Context, id, rejectedBy string, now time.Time) (bool, error) {
	query := `
		UPDATE signals
		SET status = 'REJECTED', approved_by = $2, updated_at = $3
		WHERE id = $1 AND status = 'PENDING'
	`

	tag, err := s.pool.Exec(ctx, query, id, rejectedBy, now)
	if err != nil {
		return false, fmt.Errorf("reject signal: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkExecuted transitions an APPROVED signal to EXECUTED. Returns false
// when the signal is not APPROVED, so duplicate executions are no-ops.
func (s *SignalStore) MarkExecuted(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE signals
		SET status = 'EXECUTED', updated_at = $2
		WHERE id = $1 AND status = 'APPROVED'
	`

	tag, err := s.pool.Exec(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("mark signal executed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExpirePending moves every PENDING signal past its deadline to EXPIRED and
// returns how many rows were swept.
func (s *SignalStore) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE signals
		SET status = 'EXPIRED', updated_at = $1
		WHERE status = 'PENDING' AND expires_at IS NOT NULL AND expires_at < $1
	`

	tag, err := s.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("expire pending signals: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanSignal scans a single row into a Signal.
func scanSignal(row pgx.Row) (*domain.Signal, error) {
	var (
		sig        domain.Signal
		signalType string
		status     string
	)

	err := row.Scan(
		&sig.ID, &sig.Symbol, &signalType, &sig.Confidence,
		&sig.EntryPrice, &sig.StopLossPrice, &sig.TakeProfitPrice,
		&status, &sig.AnalysisSummary, &sig.TechnicalData,
		&sig.TelegramMessageID, &sig.ApprovedBy, &sig.ApprovedAt, &sig.ExpiresAt,
		&sig.CreatedAt, &sig.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sig.SignalType = domain.SignalType(signalType)
	sig.Status = domain.SignalStatus(status)
	return &sig, nil
}

// scanSignals scans multiple rows into a slice of Signal.
func scanSignals(rows pgx.Rows) ([]*domain.Signal, error) {
	var signals []*domain.Signal

	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		signals = append(signals, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}

	return signals, nil
}
