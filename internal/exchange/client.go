// Package exchange defines the broker surface the trading core runs against.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
)

// Balance is an account balance for a single asset.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
	Total  decimal.Decimal
}

// BracketOrder is an entry order with protective stop loss and take profit.
type BracketOrder struct {
	Symbol          string
	Side            domain.SignalType
	Quantity        decimal.Decimal
	EntryPrice      decimal.Decimal
	StopLossPrice   decimal.Decimal
	TakeProfitPrice decimal.Decimal
}

// OrderRefs are the exchange identifiers of a placed bracket.
type OrderRefs struct {
	EntryOrderID      string
	StopOrderID       string
	TakeProfitOrderID string
}

// Client is the broker interface used by the executor, the position monitor
// and the portfolio tracker.
type Client interface {
	// Balance returns the account balance for an asset.
	Balance(ctx context.Context, asset string) (*Balance, error)

	// LastPrice returns the latest traded price for a symbol.
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// PlaceBracketOrder submits an entry with protective orders.
	PlaceBracketOrder(ctx context.Context, order BracketOrder) (*OrderRefs, error)

	// CloseMarket exits a position at market, cancelling its protective orders.
	CloseMarket(ctx context.Context, symbol string, side domain.SignalType, quantity decimal.Decimal) error

	// Klines fetches recent candles for a symbol and timeframe.
	Klines(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Candle, error)
}

// CandleInterval converts a timeframe string to its duration.
// Unknown timeframes fall back to one hour.
func CandleInterval(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	}
	return time.Hour
}
