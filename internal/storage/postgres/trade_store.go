package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	id, signal_id, symbol, side,
	entry_price, exit_price, quantity,
	stop_loss_price, take_profit_price,
	status, pnl_amount, pnl_percentage,
	exchange_order_id, sl_order_id, tp_order_id,
	opened_at, closed_at, created_at, updated_at
`

// Insert adds a new trade. Returns ErrDuplicateKey if the id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.SignalID, t.Symbol, t.Side.String(),
		t.EntryPrice, nullDec(t.ExitPrice), t.Quantity,
		t.StopLossPrice, t.TakeProfitPrice,
		t.Status.String(), nullDec(t.PnlAmount), nullDec(t.PnlPercentage),
		t.ExchangeOrderID, t.SLOrderID, t.TPOrderID,
		t.OpenedAt, t.ClosedAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, id string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// ListOpen retrieves all OPEN trades, oldest first.
func (s *TradeStore) ListOpen(ctx context.Context) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE status = 'OPEN'
		ORDER BY opened_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list open trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// CountOpen returns the number of OPEN trades.
func (s *TradeStore) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades WHERE status = 'OPEN'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open trades: %w", err)
	}
	return count, nil
}

// Close settles an OPEN trade with its exit price and realized P&L. Returns
// false without error when the trade is already closed, so concurrent
// monitor cycles settle each trade exactly once.
func (s *TradeStore) Close(ctx context.Context, id string, exitPrice decimal.Decimal, status domain.TradeStatus, pnlAmount, pnlPercentage decimal.Decimal, now time.Time) (bool, error) {
	query := `
		UPDATE trades
		SET exit_price = $2, status = $3, pnl_amount = $4, pnl_percentage = $5,
		    closed_at = $6, updated_at = $6
		WHERE id = $1 AND status = 'OPEN'
	`

	tag, err := s.pool.Exec(ctx, query, id, exitPrice, status.String(), pnlAmount, pnlPercentage, now)
	if err != nil {
		return false, fmt.Errorf("close trade: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TotalPnl sums realized P&L across closed trades. A nil since includes all
// closed trades.
func (s *TradeStore) TotalPnl(ctx context.Context, since *time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(pnl_amount), 0)
		FROM trades
		WHERE status IN ('CLOSED', 'STOPPED_OUT', 'TAKE_PROFIT')
		  AND ($1::timestamptz IS NULL OR closed_at >= $1)
	`

	var total decimal.Decimal
	if err := s.pool.QueryRow(ctx, query, since).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("total pnl: %w", err)
	}
	return total, nil
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var (
		t         domain.Trade
		side      string
		status    string
		exitPrice decimal.NullDecimal
		pnlAmount decimal.NullDecimal
		pnlPct    decimal.NullDecimal
	)

	err := row.Scan(
		&t.ID, &t.SignalID, &t.Symbol, &side,
		&t.EntryPrice, &exitPrice, &t.Quantity,
		&t.StopLossPrice, &t.TakeProfitPrice,
		&status, &pnlAmount, &pnlPct,
		&t.ExchangeOrderID, &t.SLOrderID, &t.TPOrderID,
		&t.OpenedAt, &t.ClosedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Side = domain.SignalType(side)
	t.Status = domain.TradeStatus(status)
	t.ExitPrice = decPtr(exitPrice)
	t.PnlAmount = decPtr(pnlAmount)
	t.PnlPercentage = decPtr(pnlPct)
	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
