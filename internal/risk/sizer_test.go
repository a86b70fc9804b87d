package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSizing() Sizing {
	return Sizing{
		AvailableBalance: decimal.NewFromInt(10000),
		RiskFraction:     decimal.NewFromFloat(0.02),
		EntryPrice:       decimal.NewFromInt(100),
		StopLossPrice:    decimal.NewFromInt(98),
		MaxOpenPositions: 5,
		OpenPositions:    0,
	}
}

func TestQuantity_FixedFraction(t *testing.T) {
	// Risk 2% of 10000 = 200 against a stop distance of 2 -> 100 units.
	qty, err := Quantity(baseSizing())
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(100)), "got %s", qty)
}

func TestQuantity_ShortSide(t *testing.T) {
	in := baseSizing()
	in.StopLossPrice = decimal.NewFromInt(102)

	// Stop distance is absolute, so the short side sizes identically.
	qty, err := Quantity(in)
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(100)), "got %s", qty)
}

func TestQuantity_CapacityExceeded(t *testing.T) {
	in := baseSizing()
	in.OpenPositions = 5

	_, err := Quantity(in)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestQuantity_CapacityCheckedFirst(t *testing.T) {
	in := baseSizing()
	in.OpenPositions = 5
	in.StopLossPrice = in.EntryPrice // also invalid levels

	// Capacity wins when both preconditions fail.
	_, err := Quantity(in)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestQuantity_ZeroStopDistance(t *testing.T) {
	in := baseSizing()
	in.StopLossPrice = in.EntryPrice

	_, err := Quantity(in)
	assert.ErrorIs(t, err, ErrInvalidPriceLevels)
}

func TestQuantity_InsufficientBalance(t *testing.T) {
	in := baseSizing()
	// A tight stop blows up the quantity past what the balance can fund:
	// risk 200 / distance 0.5 = 400 units costing 40000.
	in.StopLossPrice = decimal.NewFromFloat(99.5)

	_, err := Quantity(in)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestQuantity_LotSizeFloors(t *testing.T) {
	in := baseSizing()
	in.StopLossPrice = decimal.NewFromInt(97) // distance 3 -> 66.666... units
	in.LotSize = decimal.NewFromFloat(0.5)

	qty, err := Quantity(in)
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromFloat(66.5)), "got %s", qty)
}

func TestQuantity_TruncatesToEightDigits(t *testing.T) {
	in := baseSizing()
	in.StopLossPrice = decimal.NewFromInt(97) // 66.666...

	qty, err := Quantity(in)
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.RequireFromString("66.66666666")), "got %s", qty)
}

func TestQuantity_RoundsToZero(t *testing.T) {
	in := baseSizing()
	in.AvailableBalance = decimal.NewFromFloat(0.0000001)

	_, err := Quantity(in)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestQuantity_NonPositiveInputs(t *testing.T) {
	in := baseSizing()
	in.AvailableBalance = decimal.Zero
	_, err := Quantity(in)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	in = baseSizing()
	in.RiskFraction = decimal.Zero
	_, err = Quantity(in)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	in = baseSizing()
	in.EntryPrice = decimal.Zero
	_, err = Quantity(in)
	assert.ErrorIs(t, err, ErrInvalidPriceLevels)
}
