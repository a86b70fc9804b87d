package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType is the trade direction of a signal.
type SignalType string

const (
	SignalTypeBuy  SignalType = "BUY"
	SignalTypeSell SignalType = "SELL"
)

// String returns the string representation of SignalType.
func (t SignalType) String() string {
	return string(t)
}

// IsValid checks if the signal type is a valid value.
func (t SignalType) IsValid() bool {
	return t == SignalTypeBuy || t == SignalTypeSell
}

// SignalStatus is the lifecycle state of a signal.
type SignalStatus string

const (
	SignalStatusPending  SignalStatus = "PENDING"
	SignalStatusApproved SignalStatus = "APPROVED"
	SignalStatusRejected SignalStatus = "REJECTED"
	SignalStatusExecuted SignalStatus = "EXECUTED"
	SignalStatusExpired  SignalStatus = "EXPIRED"
)

// String returns the string representation of SignalStatus.
func (s SignalStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s SignalStatus) IsValid() bool {
	switch s {
	case SignalStatusPending, SignalStatusApproved, SignalStatusRejected,
		SignalStatusExecuted, SignalStatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves the status.
func (s SignalStatus) Terminal() bool {
	switch s {
	case SignalStatusRejected, SignalStatusExecuted, SignalStatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether s→to is an allowed lifecycle edge.
// The only edges are PENDING→{APPROVED,REJECTED,EXPIRED} and APPROVED→EXECUTED.
func (s SignalStatus) CanTransition(to SignalStatus) bool {
	switch s {
	case SignalStatusPending:
		return to == SignalStatusApproved || to == SignalStatusRejected || to == SignalStatusExpired
	case SignalStatusApproved:
		return to == SignalStatusExecuted
	}
	return false
}

// Signal represents a proposed trade awaiting operator approval.
// Corresponds to the signals table in PostgreSQL.
type Signal struct {
	ID              string
	Symbol          string
	SignalType      SignalType
	Confidence      decimal.Decimal // 0..100
	EntryPrice      decimal.Decimal
	StopLossPrice   decimal.Decimal
	TakeProfitPrice decimal.Decimal
	Status          SignalStatus
	AnalysisSummary string
	TechnicalData   map[string]any // opaque scoring payload, stored as JSONB

	TelegramMessageID *int64
	ApprovedBy        *string
	ApprovedAt        *time.Time
	ExpiresAt         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PriceLevelsValid reports whether stop, entry and target are strictly
// positive and ordered for the direction: BUY requires sl < entry < tp,
// SELL requires tp < entry < sl.
func (s *Signal) PriceLevelsValid() bool {
	return PriceLevelsValid(s.SignalType, s.EntryPrice, s.StopLossPrice, s.TakeProfitPrice)
}

// PriceLevelsValid validates price-level ordering for a direction.
func PriceLevelsValid(t SignalType, entry, stopLoss, takeProfit decimal.Decimal) bool {
	if !entry.IsPositive() || !stopLoss.IsPositive() || !takeProfit.IsPositive() {
		return false
	}
	switch t {
	case SignalTypeBuy:
		return stopLoss.LessThan(entry) && entry.LessThan(takeProfit)
	case SignalTypeSell:
		return takeProfit.LessThan(entry) && entry.LessThan(stopLoss)
	}
	return false
}
