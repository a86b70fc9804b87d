// Package main runs the market data collector: exchange klines and the
// fear & greed index into ClickHouse.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crypto-trade-desk/internal/exchange/binance"
	"crypto-trade-desk/internal/marketdata"
	"crypto-trade-desk/internal/storage"
	chstore "crypto-trade-desk/internal/storage/clickhouse"
	"crypto-trade-desk/internal/storage/memory"
	"crypto-trade-desk/internal/storage/migrations"
)

func main() {
	_ = godotenv.Load()

	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of ClickHouse")
	testnet := flag.Bool("testnet", false, "Use the Binance testnet")
	symbols := flag.String("symbols", envDefault("TRADE_SYMBOLS", "BTC/USDT,ETH/USDT"), "Comma-separated symbols to collect")
	timeframes := flag.String("timeframes", "15m,1h,4h", "Comma-separated candle timeframes")
	limit := flag.Int("limit", 100, "Candles per request")
	interval := flag.Duration("interval", 5*time.Minute, "Collection interval")

	flag.Parse()

	logger := log.New(os.Stdout, "[collector] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	candleStore, sentimentStore, cleanup, err := createStores(ctx, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Klines and the fear & greed index are public endpoints; keys are only
	// needed when the same credentials file is shared with the trader.
	ex := binance.New(binance.Config{
		APIKey:    os.Getenv("BINANCE_API_KEY"),
		APISecret: os.Getenv("BINANCE_API_SECRET"),
		Testnet:   *testnet,
	})

	collector := marketdata.NewCollector(ex, candleStore, sentimentStore, marketdata.NewFearGreedClient(), marketdata.Config{
		Symbols:    splitList(*symbols),
		Timeframes: splitList(*timeframes),
		Limit:      *limit,
	}, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	collector.Run(ctx, *interval)
	logger.Println("Shutdown complete")
}

func createStores(ctx context.Context, clickhouseDSN string, useMemory bool) (storage.CandleStore, storage.SentimentStore, func(), error) {
	if useMemory {
		return memory.NewCandleStore(), memory.NewSentimentStore(), func() {}, nil
	}

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrations.RunClickhouse(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, nil, err
	}

	cleanup := func() { conn.Close() }
	return chstore.NewCandleStore(conn), chstore.NewSentimentStore(conn), cleanup, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
