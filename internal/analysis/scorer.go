// Package analysis scores market data into trade signal candidates.
package analysis

import (
	"fmt"
	"strings"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/indicators"
)

// Result is the scorer's verdict on one symbol.
type Result struct {
	ShouldTrade bool
	SignalType  domain.SignalType
	Confidence  float64 // 0..100
	Reasoning   string
	KeyFactors  []string
}

// Sentiment carries the optional sentiment inputs for scoring. Nil pointers
// mean no recent reading was available.
type Sentiment struct {
	FearGreed *float64 // market-wide, 0 fear .. 100 greed
	Asset     *float64 // per-asset community sentiment, 0..100
}

// TechnicalScorer turns an indicator snapshot into a directional verdict.
//
// Scoring is a weighted vote: trend (30), RSI (25), MACD (25), Bollinger
// position (10), sentiment (10). Each component pushes the score toward
// one direction; confidence is the winning side's share of the votes cast.
// Components with missing inputs abstain rather than vote neutral.
type TechnicalScorer struct{}

// NewTechnicalScorer creates the deterministic scorer.
func NewTechnicalScorer() *TechnicalScorer {
	return &TechnicalScorer{}
}

const (
	weightTrend     = 30.0
	weightRSI       = 25.0
	weightMACD      = 25.0
	weightBollinger = 10.0
	weightSentiment = 10.0
)

// Score evaluates one symbol. The snapshot must come from a series long
// enough for the 50-period baseline or the result is a no-trade.
func (s *TechnicalScorer) Score(snap indicators.Snapshot, sent Sentiment) Result {
	if snap.SMA50 == nil || snap.RSI14 == nil || snap.MACD == nil || snap.Bollinger == nil {
		return Result{Reasoning: "insufficient history for indicator baseline"}
	}

	var buy, sell, cast float64
	var factors []string

	// Trend: price against the 20/50 moving averages.
	cast += weightTrend
	switch {
	case snap.Price > *snap.SMA20 && *snap.SMA20 > *snap.SMA50:
		buy += weightTrend
		factors = append(factors, "uptrend: price above rising averages")
	case snap.Price < *snap.SMA20 && *snap.SMA20 < *snap.SMA50:
		sell += weightTrend
		factors = append(factors, "downtrend: price below falling averages")
	default:
		buy += weightTrend / 2
		sell += weightTrend / 2
		factors = append(factors, "trend mixed")
	}

	// RSI: oversold favors entry, overbought favors exit.
	cast += weightRSI
	switch rsi := *snap.RSI14; {
	case rsi <= 30:
		buy += weightRSI
		factors = append(factors, fmt.Sprintf("RSI oversold at %.1f", rsi))
	case rsi >= 70:
		sell += weightRSI
		factors = append(factors, fmt.Sprintf("RSI overbought at %.1f", rsi))
	case rsi < 45:
		buy += weightRSI * 0.6
		sell += weightRSI * 0.4
	case rsi > 55:
		sell += weightRSI * 0.6
		buy += weightRSI * 0.4
	default:
		buy += weightRSI / 2
		sell += weightRSI / 2
	}

	// MACD: histogram sign gives momentum direction.
	cast += weightMACD
	if snap.MACD.Histogram > 0 {
		buy += weightMACD
		factors = append(factors, "MACD momentum positive")
	} else if snap.MACD.Histogram < 0 {
		sell += weightMACD
		factors = append(factors, "MACD momentum negative")
	} else {
		buy += weightMACD / 2
		sell += weightMACD / 2
	}

	// Bollinger: touching a band suggests reversion.
	cast += weightBollinger
	switch {
	case snap.Price <= snap.Bollinger.Lower:
		buy += weightBollinger
		factors = append(factors, "price at lower Bollinger band")
	case snap.Price >= snap.Bollinger.Upper:
		sell += weightBollinger
		factors = append(factors, "price at upper Bollinger band")
	default:
		buy += weightBollinger / 2
		sell += weightBollinger / 2
	}

	// Sentiment: extreme fear is a contrarian buy, extreme greed a sell.
	// Prefer the per-asset reading, fall back to the market index.
	if v := pickSentiment(sent); v != nil {
		cast += weightSentiment
		switch {
		case *v <= 25:
			buy += weightSentiment
			factors = append(factors, fmt.Sprintf("extreme fear (%.0f), contrarian long", *v))
		case *v >= 75:
			sell += weightSentiment
			factors = append(factors, fmt.Sprintf("extreme greed (%.0f), contrarian short", *v))
		default:
			buy += weightSentiment / 2
			sell += weightSentiment / 2
		}
	}

	direction := domain.SignalTypeBuy
	winning := buy
	if sell > buy {
		direction = domain.SignalTypeSell
		winning = sell
	}
	confidence := winning / cast * 100

	res := Result{
		SignalType: direction,
		Confidence: confidence,
		KeyFactors: factors,
		Reasoning: fmt.Sprintf("%s %.1f%% (%s)",
			direction, confidence, strings.Join(factors, "; ")),
	}
	// A coin flip is not a trade; the admission threshold upstream decides
	// what is high enough, the scorer only rules out directionless reads.
	res.ShouldTrade = confidence > 50
	return res
}

func pickSentiment(sent Sentiment) *float64 {
	if sent.Asset != nil {
		return sent.Asset
	}
	return sent.FearGreed
}
