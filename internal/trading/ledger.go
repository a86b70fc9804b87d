package trading

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/observability"
	"crypto-trade-desk/internal/storage"
)

// Ledger settles trades and reports realized P&L.
type Ledger struct {
	trades storage.TradeStore
	logger *log.Logger
}

// NewLedger creates a trade ledger.
func NewLedger(trades storage.TradeStore, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.Default()
	}
	return &Ledger{trades: trades, logger: logger}
}

// Close settles an open trade at exitPrice with the given close reason.
// The store update is conditional on the trade still being OPEN; losing
// that race returns ErrAlreadyProcessed and changes nothing.
func (l *Ledger) Close(ctx context.Context, tradeID string, exitPrice decimal.Decimal, reason domain.TradeStatus, now time.Time) (*domain.Trade, error) {
	if !reason.ClosesTrade() {
		return nil, fmt.Errorf("close trade %s: %w: status %s is not a close reason",
			tradeID, storage.ErrInvalidInput, reason)
	}
	if !exitPrice.IsPositive() {
		return nil, fmt.Errorf("close trade %s: %w: exit price %s",
			tradeID, storage.ErrInvalidInput, exitPrice)
	}

	trade, err := l.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("load trade %s: %w", tradeID, err)
	}

	amount, percentage := domain.PnL(trade.Side, trade.EntryPrice, exitPrice, trade.Quantity)

	applied, err := l.trades.Close(ctx, tradeID, exitPrice, reason, amount, percentage, now)
	if err != nil {
		return nil, fmt.Errorf("close trade %s: %w", tradeID, err)
	}
	if !applied {
		return nil, fmt.Errorf("trade %s: %w", tradeID, ErrAlreadyProcessed)
	}

	trade.ExitPrice = &exitPrice
	trade.Status = reason
	trade.PnlAmount = &amount
	trade.PnlPercentage = &percentage
	trade.ClosedAt = &now
	trade.UpdatedAt = now

	observability.RecordTradeClosed(strings.ToLower(string(reason)))
	if total, err := l.trades.TotalPnl(ctx, nil); err != nil {
		l.logger.Printf("[ledger] total pnl refresh failed: %v", err)
	} else {
		observability.SetRealizedPnl(total.InexactFloat64())
	}

	l.logger.Printf("[ledger] closed %s %s %s exit=%s pnl=%s (%s%%)",
		trade.ID, trade.Side, trade.Symbol, exitPrice, amount, percentage)

	return trade, nil
}

// TotalPnl sums realized P&L over closed trades since the given time, or
// over all time when since is nil.
func (l *Ledger) TotalPnl(ctx context.Context, since *time.Time) (decimal.Decimal, error) {
	return l.trades.TotalPnl(ctx, since)
}
