package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is an OHLCV bar for one symbol and timeframe.
// Corresponds to the market_data table in ClickHouse.
type Candle struct {
	Symbol    string
	Timeframe string // "15m", "1h", "4h"
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}
