package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	mainnetWSBaseURL = "wss://stream.binance.com:9443"
	testnetWSBaseURL = "wss://testnet.binance.vision"

	reconnectDelay = 5 * time.Second
)

// tickerStream maintains a live price cache fed by the combined miniTicker
// websocket stream, so the position monitor does not burn REST weight on
// every cycle.
type tickerStream struct {
	url    string
	logger *log.Logger

	mu     sync.RWMutex
	prices map[string]decimal.Decimal // keyed by binance symbol, e.g. BTCUSDT
}

// StartTicker subscribes the client to live prices for the given symbols
// ("BTC/USDT" form). The stream reconnects until the context is cancelled.
func (c *Client) StartTicker(ctx context.Context, symbols []string, testnet bool, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}

	base := mainnetWSBaseURL
	if testnet {
		base = testnetWSBaseURL
	}

	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(binanceSymbol(s))+"@miniTicker")
	}

	ts := &tickerStream{
		url:    fmt.Sprintf("%s/stream?streams=%s", base, strings.Join(streams, "/")),
		logger: logger,
		prices: make(map[string]decimal.Decimal),
	}
	c.ticker = ts

	go ts.run(ctx)
}

// Price returns the cached price for a symbol ("BTC/USDT" form).
func (t *tickerStream) Price(symbol string) (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	price, ok := t.prices[binanceSymbol(symbol)]
	return price, ok
}

// miniTickerEvent is the payload of a combined-stream miniTicker message.
type miniTickerEvent struct {
	Data struct {
		Symbol string `json:"s"`
		Close  string `json:"c"`
	} `json:"data"`
}

func (t *tickerStream) run(ctx context.Context) {
	for {
		if err := t.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Printf("[binance] ticker stream error: %v, reconnecting in %s", err, reconnectDelay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (t *tickerStream) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("dial ticker stream: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage on cancellation.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	t.logger.Printf("[binance] ticker stream connected")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read ticker message: %w", err)
		}

		var event miniTickerEvent
		if err := json.Unmarshal(message, &event); err != nil {
			t.logger.Printf("[binance] skip malformed ticker message: %v", err)
			continue
		}
		if event.Data.Symbol == "" {
			continue
		}

		price, err := decimal.NewFromString(event.Data.Close)
		if err != nil {
			t.logger.Printf("[binance] skip unparseable price %q: %v", event.Data.Close, err)
			continue
		}

		t.mu.Lock()
		t.prices[event.Data.Symbol] = price
		t.mu.Unlock()
	}
}
