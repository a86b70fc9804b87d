package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SentimentSource identifies where a sentiment reading came from.
type SentimentSource string

const (
	SentimentSourceFearGreed SentimentSource = "fear_greed"
	SentimentSourceCoingecko SentimentSource = "coingecko"
)

// String returns the string representation of SentimentSource.
func (s SentimentSource) String() string {
	return string(s)
}

// SentimentPoint is a single sentiment reading on a 0..100 scale.
// Symbol is empty for market-wide readings (fear & greed index).
// Corresponds to the sentiment_data table in ClickHouse.
type SentimentPoint struct {
	Source         SentimentSource
	Symbol         string
	Timestamp      time.Time
	Value          decimal.Decimal // 0..100
	Classification string
	RawData        string // upstream JSON payload, carried through uninterpreted
}
