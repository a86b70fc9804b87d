package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is a point-in-time balance record. Snapshots are
// append-only; the most recent row per asset is authoritative.
type PortfolioSnapshot struct {
	ID               string
	Asset            string
	TotalBalance     decimal.Decimal
	AvailableBalance decimal.Decimal
	LockedBalance    decimal.Decimal
	Timestamp        time.Time
	CreatedAt        time.Time
}
