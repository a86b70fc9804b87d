// Package marketdata pulls candles and sentiment readings into storage.
package marketdata

import (
	"context"
	"fmt"
	"log"
	"time"

	"crypto-trade-desk/internal/exchange"
	"crypto-trade-desk/internal/observability"
	"crypto-trade-desk/internal/storage"
)

// Config controls one collection pass.
type Config struct {
	Symbols    []string
	Timeframes []string // default 15m, 1h, 4h
	Limit      int      // candles per request, default 100
}

// Collector fetches klines from the exchange and sentiment readings from
// their upstream APIs, writing both to storage.
type Collector struct {
	exchange  exchange.Client
	candles   storage.CandleStore
	sentiment storage.SentimentStore
	fearGreed *FearGreedClient // optional
	cfg       Config
	logger    *log.Logger
}

// NewCollector creates a market data collector. fearGreed may be nil to
// skip sentiment collection.
func NewCollector(ex exchange.Client, candles storage.CandleStore, sentiment storage.SentimentStore, fearGreed *FearGreedClient, cfg Config, logger *log.Logger) *Collector {
	if len(cfg.Timeframes) == 0 {
		cfg.Timeframes = []string{"15m", "1h", "4h"}
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Collector{
		exchange:  ex,
		candles:   candles,
		sentiment: sentiment,
		fearGreed: fearGreed,
		cfg:       cfg,
		logger:    logger,
	}
}

// CollectCandles pulls recent klines for every symbol and timeframe. One
// failing pair does not abort the pass; the first error is returned after
// every pair was attempted.
func (c *Collector) CollectCandles(ctx context.Context) error {
	var firstErr error
	total := 0

	for _, symbol := range c.cfg.Symbols {
		for _, timeframe := range c.cfg.Timeframes {
			candles, err := c.exchange.Klines(ctx, symbol, timeframe, c.cfg.Limit)
			if err != nil {
				observability.RecordCollectionError("klines")
				c.logger.Printf("[collector] klines %s %s: %v", symbol, timeframe, err)
				if firstErr == nil {
					firstErr = fmt.Errorf("klines %s %s: %w", symbol, timeframe, err)
				}
				continue
			}

			if err := c.candles.InsertBulk(ctx, candles); err != nil {
				observability.RecordCollectionError("candle_store")
				c.logger.Printf("[collector] store candles %s %s: %v", symbol, timeframe, err)
				if firstErr == nil {
					firstErr = fmt.Errorf("store candles %s %s: %w", symbol, timeframe, err)
				}
				continue
			}
			total += len(candles)
		}
	}

	observability.RecordCandlesCollected(total)
	c.logger.Printf("[collector] stored %d candles across %d symbols", total, len(c.cfg.Symbols))
	return firstErr
}

// CollectSentiment pulls the fear & greed index. No-op when the client was
// not configured.
func (c *Collector) CollectSentiment(ctx context.Context) error {
	if c.fearGreed == nil {
		return nil
	}

	point, err := c.fearGreed.Fetch(ctx)
	if err != nil {
		observability.RecordCollectionError("fear_greed")
		return fmt.Errorf("fetch fear & greed index: %w", err)
	}

	if err := c.sentiment.Insert(ctx, point); err != nil {
		observability.RecordCollectionError("sentiment_store")
		return fmt.Errorf("store sentiment: %w", err)
	}

	observability.RecordSentimentCollected()
	c.logger.Printf("[collector] fear & greed %s (%s)", point.Value, point.Classification)
	return nil
}

// Run collects candles and sentiment on the given interval until the
// context is canceled. The first pass runs immediately.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	c.logger.Printf("[collector] started, interval %s", interval)

	c.collectOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Printf("[collector] stopped")
			return
		case <-ticker.C:
			c.collectOnce(ctx)
		}
	}
}

func (c *Collector) collectOnce(ctx context.Context) {
	ok := true
	if err := c.CollectCandles(ctx); err != nil {
		c.logger.Printf("[collector] candle pass incomplete: %v", err)
		ok = false
	}
	if err := c.CollectSentiment(ctx); err != nil {
		c.logger.Printf("[collector] sentiment pass failed: %v", err)
		ok = false
	}
	if ok {
		observability.MarkCollectionSuccess(time.Now().UTC())
	}
}
