package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus is the lifecycle state of a trade. OPEN is the only
// non-terminal state.
type TradeStatus string

const (
	TradeStatusOpen       TradeStatus = "OPEN"
	TradeStatusClosed     TradeStatus = "CLOSED"
	TradeStatusStoppedOut TradeStatus = "STOPPED_OUT"
	TradeStatusTakeProfit TradeStatus = "TAKE_PROFIT"
)

// String returns the string representation of TradeStatus.
func (s TradeStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s TradeStatus) IsValid() bool {
	switch s {
	case TradeStatusOpen, TradeStatusClosed, TradeStatusStoppedOut, TradeStatusTakeProfit:
		return true
	}
	return false
}

// ClosesTrade reports whether the status is a valid close reason.
func (s TradeStatus) ClosesTrade() bool {
	return s.IsValid() && s != TradeStatusOpen
}

// Trade represents a realized market position opened from an approved signal.
// Corresponds to the trades table in PostgreSQL.
type Trade struct {
	ID       string
	SignalID *string // weak back-reference, lookup only
	Symbol   string
	Side     SignalType

	EntryPrice      decimal.Decimal
	ExitPrice       *decimal.Decimal
	Quantity        decimal.Decimal
	StopLossPrice   decimal.Decimal
	TakeProfitPrice decimal.Decimal

	Status        TradeStatus
	PnlAmount     *decimal.Decimal
	PnlPercentage *decimal.Decimal

	ExchangeOrderID *string
	SLOrderID       *string
	TPOrderID       *string

	OpenedAt  time.Time
	ClosedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PnL computes the realized result of exiting a position.
// BUY profits when exit > entry, SELL profits when exit < entry.
// The amount is kept at 8 fractional digits, the percentage at 2.
func PnL(side SignalType, entry, exit, quantity decimal.Decimal) (amount, percentage decimal.Decimal) {
	amount = exit.Sub(entry).Mul(quantity)
	if side == SignalTypeSell {
		amount = amount.Neg()
	}
	amount = amount.Round(8)
	percentage = amount.Div(entry.Mul(quantity)).Mul(decimal.NewFromInt(100)).Round(2)
	return amount, percentage
}
