package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
)

// SignalStore provides access to signals storage.
//
// All status-changing methods are conditional updates: they apply only if
// the row is still in the expected source status and report whether the
// transition took effect. A false return is a lost race, not an error.
type SignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, s *domain.Signal) error

	// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Signal, error)

	// GetByTelegramMessageID retrieves the signal attached to an approval
	// message. Returns ErrNotFound if not exists.
	GetByTelegramMessageID(ctx context.Context, messageID int64) (*domain.Signal, error)

	// ListByStatus retrieves all signals in a status, oldest first.
	ListByStatus(ctx context.Context, status domain.SignalStatus) ([]*domain.Signal, error)

	// SetTelegramMessageID records the approval message reference.
	SetTelegramMessageID(ctx context.Context, id string, messageID int64, now time.Time) error

	// Approve transitions PENDING→APPROVED and records the approver.
	Approve(ctx context.Context, id, approvedBy string, now time.Time) (bool, error)

	// Reject transitions PENDING→REJECTED and records who rejected.
	Reject(ctx context.Context, id, rejectedBy string, now time.Time) (bool, error)

	// MarkExecuted transitions APPROVED→EXECUTED.
	MarkExecuted(ctx context.Context, id string, now time.Time) (bool, error)

	// ExpirePending transitions every PENDING signal with expires_at < now
	// to EXPIRED in a single conditional update. Returns the number of
	// signals expired.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// TradeStore provides access to trades storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Trade, error)

	// ListOpen retrieves all OPEN trades, oldest first.
	ListOpen(ctx context.Context) ([]*domain.Trade, error)

	// CountOpen returns the number of OPEN trades.
	CountOpen(ctx context.Context) (int, error)

	// Close transitions OPEN→status and records the exit. Conditional on the
	// trade still being OPEN; reports whether the close took effect.
	Close(ctx context.Context, id string, exitPrice decimal.Decimal, status domain.TradeStatus, pnlAmount, pnlPercentage decimal.Decimal, now time.Time) (bool, error)

	// TotalPnl sums pnl_amount over closed trades with closed_at >= since
	// (all time when since is nil). Returns zero on an empty result set.
	TotalPnl(ctx context.Context, since *time.Time) (decimal.Decimal, error)
}

// PortfolioStore provides access to portfolio snapshot storage.
// Snapshots are append-only and never mutated.
type PortfolioStore interface {
	// Append adds a new snapshot.
	Append(ctx context.Context, s *domain.PortfolioSnapshot) error

	// Latest retrieves the most recent snapshot for an asset.
	// Returns ErrNotFound if no snapshot exists.
	Latest(ctx context.Context, asset string) (*domain.PortfolioSnapshot, error)
}

// CandleStore provides access to market_data storage.
type CandleStore interface {
	// InsertBulk adds multiple candles. Re-inserting the same
	// (symbol, timeframe, timestamp) replaces the previous row.
	InsertBulk(ctx context.Context, candles []*domain.Candle) error

	// GetRecent retrieves the most recent candles for a symbol/timeframe,
	// ordered by timestamp ASC.
	GetRecent(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Candle, error)
}

// SentimentStore provides access to sentiment_data storage.
type SentimentStore interface {
	// Insert adds a sentiment reading.
	Insert(ctx context.Context, p *domain.SentimentPoint) error

	// Latest retrieves the most recent reading for a source and symbol
	// (empty symbol for market-wide readings). Returns ErrNotFound if none.
	Latest(ctx context.Context, source domain.SentimentSource, symbol string) (*domain.SentimentPoint, error)
}
