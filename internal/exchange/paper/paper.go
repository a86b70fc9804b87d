// Package paper provides a simulated exchange for dry-run trading and tests.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/exchange"
)

// Client is an in-memory exchange. Prices and balances are set by the test
// or by the paper-trading loop; orders always fill at the requested price.
type Client struct {
	mu       sync.RWMutex
	prices   map[string]decimal.Decimal
	balances map[string]*exchange.Balance
	orders   []exchange.BracketOrder
	closes   []string // symbols closed at market

	failPlacement bool
	failClose     bool
}

// New creates a paper exchange with no prices or balances set.
func New() *Client {
	return &Client{
		prices:   make(map[string]decimal.Decimal),
		balances: make(map[string]*exchange.Balance),
	}
}

// Compile-time interface check.
var _ exchange.Client = (*Client)(nil)

// SetPrice sets the last traded price for a symbol.
func (c *Client) SetPrice(symbol string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[symbol] = price
}

// SetBalance sets the account balance for an asset.
func (c *Client) SetBalance(asset string, free, locked decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[asset] = &exchange.Balance{
		Asset:  asset,
		Free:   free,
		Locked: locked,
		Total:  free.Add(locked),
	}
}

// FailPlacements makes every PlaceBracketOrder call return an error.
func (c *Client) FailPlacements(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failPlacement = fail
}

// FailCloses makes every CloseMarket call return an error.
func (c *Client) FailCloses(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failClose = fail
}

// PlacedOrders returns every bracket order accepted so far.
func (c *Client) PlacedOrders() []exchange.BracketOrder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]exchange.BracketOrder(nil), c.orders...)
}

// ClosedSymbols returns every symbol closed at market so far.
func (c *Client) ClosedSymbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.closes...)
}

// Balance returns the configured balance for an asset.
func (c *Client) Balance(_ context.Context, asset string) (*exchange.Balance, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.balances[asset]
	if !ok {
		return nil, fmt.Errorf("no balance configured for %s", asset)
	}
	copy := *b
	return &copy, nil
}

// LastPrice returns the configured price for a symbol.
func (c *Client) LastPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	price, ok := c.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price configured for %s", symbol)
	}
	return price, nil
}

// PlaceBracketOrder records the order and returns synthetic order ids.
func (c *Client) PlaceBracketOrder(_ context.Context, order exchange.BracketOrder) (*exchange.OrderRefs, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failPlacement {
		return nil, fmt.Errorf("paper exchange rejected order for %s", order.Symbol)
	}

	c.orders = append(c.orders, order)
	return &exchange.OrderRefs{
		EntryOrderID:      uuid.NewString(),
		StopOrderID:       uuid.NewString(),
		TakeProfitOrderID: uuid.NewString(),
	}, nil
}

// CloseMarket records the close request.
func (c *Client) CloseMarket(_ context.Context, symbol string, _ domain.SignalType, _ decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failClose {
		return fmt.Errorf("paper exchange rejected close for %s", symbol)
	}

	c.closes = append(c.closes, symbol)
	return nil
}

// Klines synthesizes a flat candle series ending at the configured price.
func (c *Client) Klines(_ context.Context, symbol, timeframe string, limit int) ([]*domain.Candle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	price, ok := c.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no price configured for %s", symbol)
	}

	step := exchange.CandleInterval(timeframe)
	end := time.Now().UTC().Truncate(step)

	candles := make([]*domain.Candle, 0, limit)
	for i := limit - 1; i >= 0; i-- {
		candles = append(candles, &domain.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			Timestamp: end.Add(-time.Duration(i) * step),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    decimal.NewFromInt(1),
		})
	}
	return candles, nil
}
