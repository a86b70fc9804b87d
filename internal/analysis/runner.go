package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/indicators"
	"crypto-trade-desk/internal/signals"
	"crypto-trade-desk/internal/storage"
)

// minHistory is the shortest close series the indicator baseline accepts.
const minHistory = 50

// Level offsets applied to the latest close. The stop risks 2%, the target
// reaches for 4%, a fixed 1:2 ratio.
var (
	stopOffset   = decimal.RequireFromString("0.02")
	targetOffset = decimal.RequireFromString("0.04")
)

// Config controls a signal generation pass.
type Config struct {
	Symbols   []string
	Timeframe string // default 1h
	History   int    // candles per symbol, default 100
}

// Runner scores stored market data and submits candidates to the signal
// engine. The engine owns admission: low-confidence candidates are dropped
// there, not here.
type Runner struct {
	candles   storage.CandleStore
	sentiment storage.SentimentStore
	scorer    *TechnicalScorer
	engine    *signals.Engine
	cfg       Config
	logger    *log.Logger
}

// NewRunner creates an analysis runner.
func NewRunner(candles storage.CandleStore, sentiment storage.SentimentStore, engine *signals.Engine, cfg Config, logger *log.Logger) *Runner {
	if cfg.Timeframe == "" {
		cfg.Timeframe = "1h"
	}
	if cfg.History <= 0 {
		cfg.History = 100
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		candles:   candles,
		sentiment: sentiment,
		scorer:    NewTechnicalScorer(),
		engine:    engine,
		cfg:       cfg,
		logger:    logger,
	}
}

// GenerateSignals runs one scoring pass over every configured symbol and
// returns the signals that were admitted. A symbol with thin history or a
// directionless read is skipped, not an error.
func (r *Runner) GenerateSignals(ctx context.Context, now time.Time) ([]*domain.Signal, error) {
	marketSent := r.latestSentiment(ctx, domain.SentimentSourceFearGreed, "")

	var created []*domain.Signal
	for _, symbol := range r.cfg.Symbols {
		sig, err := r.analyzeSymbol(ctx, symbol, marketSent, now)
		if err != nil {
			return created, fmt.Errorf("analyze %s: %w", symbol, err)
		}
		if sig != nil {
			created = append(created, sig)
		}
	}
	return created, nil
}

func (r *Runner) analyzeSymbol(ctx context.Context, symbol string, marketSent *float64, now time.Time) (*domain.Signal, error) {
	candles, err := r.candles.GetRecent(ctx, symbol, r.cfg.Timeframe, r.cfg.History)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	if len(candles) < minHistory {
		r.logger.Printf("[analysis] %s: %d candles, need %d, skipping", symbol, len(candles), minHistory)
		return nil, nil
	}

	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close.InexactFloat64()
	}
	snap := indicators.Compute(prices)

	sent := Sentiment{
		FearGreed: marketSent,
		Asset:     r.latestSentiment(ctx, domain.SentimentSourceCoingecko, symbol),
	}

	verdict := r.scorer.Score(snap, sent)
	if !verdict.ShouldTrade {
		r.logger.Printf("[analysis] %s: no trade (%s)", symbol, verdict.Reasoning)
		return nil, nil
	}

	entry := candles[len(candles)-1].Close
	stopLoss, takeProfit := priceLevels(verdict.SignalType, entry)

	sig, err := r.engine.CreateSignal(ctx, signals.CreateRequest{
		Symbol:          symbol,
		SignalType:      verdict.SignalType,
		Confidence:      decimal.NewFromFloat(verdict.Confidence).Round(2),
		EntryPrice:      entry,
		StopLossPrice:   stopLoss,
		TakeProfitPrice: takeProfit,
		AnalysisSummary: verdict.Reasoning,
		TechnicalData:   technicalPayload(snap, sent, verdict),
	}, now)
	switch {
	case err == nil:
		return sig, nil
	case errors.Is(err, signals.ErrLowConfidence):
		r.logger.Printf("[analysis] %s: dropped, %v", symbol, err)
		return nil, nil
	default:
		return nil, err
	}
}

// priceLevels derives the protective levels from the entry: BUY stops below
// and targets above, SELL mirrored.
func priceLevels(t domain.SignalType, entry decimal.Decimal) (stopLoss, takeProfit decimal.Decimal) {
	one := decimal.NewFromInt(1)
	if t == domain.SignalTypeBuy {
		return entry.Mul(one.Sub(stopOffset)), entry.Mul(one.Add(targetOffset))
	}
	return entry.Mul(one.Add(stopOffset)), entry.Mul(one.Sub(targetOffset))
}

// latestSentiment fetches the newest reading, tolerating absence.
func (r *Runner) latestSentiment(ctx context.Context, source domain.SentimentSource, symbol string) *float64 {
	point, err := r.sentiment.Latest(ctx, source, symbol)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Printf("[analysis] sentiment %s/%s unavailable: %v", source, symbol, err)
		}
		return nil
	}
	v := point.Value.InexactFloat64()
	return &v
}

// technicalPayload flattens the scoring inputs for the signal's JSONB
// technical_data column.
func technicalPayload(snap indicators.Snapshot, sent Sentiment, verdict Result) map[string]any {
	payload := map[string]any{
		"price":       snap.Price,
		"key_factors": verdict.KeyFactors,
	}
	if snap.SMA20 != nil {
		payload["sma_20"] = *snap.SMA20
	}
	if snap.SMA50 != nil {
		payload["sma_50"] = *snap.SMA50
	}
	if snap.RSI14 != nil {
		payload["rsi_14"] = *snap.RSI14
	}
	if snap.MACD != nil {
		payload["macd"] = snap.MACD.MACD
		payload["macd_signal"] = snap.MACD.Signal
		payload["macd_histogram"] = snap.MACD.Histogram
	}
	if snap.Bollinger != nil {
		payload["bb_upper"] = snap.Bollinger.Upper
		payload["bb_lower"] = snap.Bollinger.Lower
	}
	if sent.FearGreed != nil {
		payload["fear_greed"] = *sent.FearGreed
	}
	if sent.Asset != nil {
		payload["asset_sentiment"] = *sent.Asset
	}
	return payload
}
