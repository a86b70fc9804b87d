// Package risk converts account balance and signal price levels into a
// position size bounded by fixed-fraction risk.
package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrCapacityExceeded means the open-position cap leaves no room for
	// another trade.
	ErrCapacityExceeded = errors.New("max open positions reached")

	// ErrInvalidPriceLevels means entry and stop loss do not give a
	// positive stop distance.
	ErrInvalidPriceLevels = errors.New("invalid price levels")

	// ErrInsufficientBalance means the computed position cannot be funded
	// from the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Sizing is the input to a position-size computation.
type Sizing struct {
	AvailableBalance decimal.Decimal
	RiskFraction     decimal.Decimal // fraction of balance at risk per trade, e.g. 0.02
	EntryPrice       decimal.Decimal
	StopLossPrice    decimal.Decimal
	LotSize          decimal.Decimal // exchange step size, zero for no rounding
	MaxOpenPositions int
	OpenPositions    int
}

// Quantity computes the position size for a trade risking
// balance * riskFraction against the stop distance:
//
//	qty = (balance * riskFraction) / |entry - stopLoss|
//
// The capacity check runs first so a full book is reported even when the
// price levels are also bad. The funding check uses the unrounded quantity;
// lot-size flooring only ever shrinks the position.
func Quantity(in Sizing) (decimal.Decimal, error) {
	if in.OpenPositions >= in.MaxOpenPositions {
		return decimal.Zero, fmt.Errorf("%w: %d of %d", ErrCapacityExceeded, in.OpenPositions, in.MaxOpenPositions)
	}

	stopDistance := in.EntryPrice.Sub(in.StopLossPrice).Abs()
	if !in.EntryPrice.IsPositive() || !stopDistance.IsPositive() {
		return decimal.Zero, ErrInvalidPriceLevels
	}

	if !in.AvailableBalance.IsPositive() || !in.RiskFraction.IsPositive() {
		return decimal.Zero, ErrInsufficientBalance
	}

	riskAmount := in.AvailableBalance.Mul(in.RiskFraction)
	qty := riskAmount.Div(stopDistance)

	if qty.Mul(in.EntryPrice).GreaterThan(in.AvailableBalance) {
		return decimal.Zero, fmt.Errorf("%w: need %s, have %s",
			ErrInsufficientBalance, qty.Mul(in.EntryPrice), in.AvailableBalance)
	}

	if in.LotSize.IsPositive() {
		qty = qty.Div(in.LotSize).Floor().Mul(in.LotSize)
	} else {
		qty = qty.Truncate(8)
	}

	if !qty.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: position rounds to zero", ErrInsufficientBalance)
	}

	return qty, nil
}
