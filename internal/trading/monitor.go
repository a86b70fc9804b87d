package trading

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/exchange"
	"crypto-trade-desk/internal/observability"
	"crypto-trade-desk/internal/storage"
)

// Monitor watches open positions and settles them when the market crosses
// their stop-loss or take-profit level.
type Monitor struct {
	trades   storage.TradeStore
	exchange exchange.Client
	ledger   *Ledger
	logger   *log.Logger
}

// NewMonitor creates a position monitor.
func NewMonitor(trades storage.TradeStore, ex exchange.Client, ledger *Ledger, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{trades: trades, exchange: ex, ledger: ledger, logger: logger}
}

// CheckPositions inspects every open trade against the current market price
// and closes the ones whose protective level was crossed. One failing trade
// does not stop the pass; the error count is returned through the log only.
// Returns the number of trades closed.
func (m *Monitor) CheckPositions(ctx context.Context, now time.Time) (int, error) {
	open, err := m.trades.ListOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open trades: %w", err)
	}
	observability.UpdateOpenPositions(len(open))

	closed := 0
	prices := make(map[string]decimal.Decimal, len(open))
	for _, trade := range open {
		price, ok := prices[trade.Symbol]
		if !ok {
			price, err = m.exchange.LastPrice(ctx, trade.Symbol)
			if err != nil {
				m.logger.Printf("[monitor] price for %s unavailable: %v", trade.Symbol, err)
				continue
			}
			prices[trade.Symbol] = price
		}

		exitPrice, reason, hit := exitLevel(trade, price)
		if !hit {
			continue
		}

		if err := m.closePosition(ctx, trade, exitPrice, reason, now); err != nil {
			m.logger.Printf("[monitor] close %s failed: %v", trade.ID, err)
			continue
		}
		closed++
	}
	return closed, nil
}

// closePosition flattens the position on the exchange first, then settles
// the ledger. The market close side is the opposite of the entry side.
func (m *Monitor) closePosition(ctx context.Context, trade *domain.Trade, exitPrice decimal.Decimal, reason domain.TradeStatus, now time.Time) error {
	if err := m.exchange.CloseMarket(ctx, trade.Symbol, trade.Side, trade.Quantity); err != nil {
		return fmt.Errorf("flatten %s on exchange: %w", trade.Symbol, err)
	}

	_, err := m.ledger.Close(ctx, trade.ID, exitPrice, reason, now)
	return err
}

// exitLevel decides whether the price crossed a protective level. The trade
// settles at the level itself, not at the observed market price, since the
// resting stop and limit orders fill there. When both levels are crossed in
// one observation the stop wins.
func exitLevel(trade *domain.Trade, price decimal.Decimal) (decimal.Decimal, domain.TradeStatus, bool) {
	var hitSL, hitTP bool
	if trade.Side == domain.SignalTypeBuy {
		hitSL = price.LessThanOrEqual(trade.StopLossPrice)
		hitTP = price.GreaterThanOrEqual(trade.TakeProfitPrice)
	} else {
		hitSL = price.GreaterThanOrEqual(trade.StopLossPrice)
		hitTP = price.LessThanOrEqual(trade.TakeProfitPrice)
	}

	switch {
	case hitSL:
		return trade.StopLossPrice, domain.TradeStatusStoppedOut, true
	case hitTP:
		return trade.TakeProfitPrice, domain.TradeStatusTakeProfit, true
	}
	return decimal.Zero, "", false
}
