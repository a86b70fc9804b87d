// Package main runs the analysis service: it scores stored market data on a
// schedule and submits high-confidence candidates as pending signals.
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
	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/analysis"
	"crypto-trade-desk/internal/signals"
	chstore "crypto-trade-desk/internal/storage/clickhouse"
	"crypto-trade-desk/internal/storage/migrations"
	pgstore "crypto-trade-desk/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	symbols := flag.String("symbols", envDefault("TRADE_SYMBOLS", "BTC/USDT,ETH/USDT"), "Comma-separated symbols to analyze")
	timeframe := flag.String("timeframe", "1h", "Candle timeframe for analysis")
	minConfidence := flag.Int("min-confidence", 90, "Minimum signal confidence, inclusive")
	expiryHorizon := flag.Duration("expiry-horizon", 4*time.Hour, "Pending signal lifetime")
	interval := flag.Duration("interval", 15*time.Minute, "Analysis interval")

	flag.Parse()

	logger := log.New(os.Stdout, "[analyzer] ", log.LstdFlags|log.Lshortfile)

	if *postgresDSN == "" || *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		logger.Fatalf("Failed to apply postgres migrations: %v", err)
	}

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to clickhouse: %v", err)
	}
	defer conn.Close()

	engine := signals.NewEngine(pgstore.NewSignalStore(pool), signals.Config{
		MinConfidence: decimal.NewFromInt(int64(*minConfidence)),
		ExpiryHorizon: *expiryHorizon,
	}, logger)

	runner := analysis.NewRunner(
		chstore.NewCandleStore(conn),
		chstore.NewSentimentStore(conn),
		engine,
		analysis.Config{
			Symbols:   splitList(*symbols),
			Timeframe: *timeframe,
		},
		logger,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	logger.Printf("Analysis started, interval %s", *interval)
	runPass(ctx, runner, logger)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Println("Shutdown complete")
			return
		case <-ticker.C:
			runPass(ctx, runner, logger)
		}
	}
}

func runPass(ctx context.Context, runner *analysis.Runner, logger *log.Logger) {
	created, err := runner.GenerateSignals(ctx, time.Now().UTC())
	if err != nil {
		logger.Printf("Analysis pass incomplete: %v", err)
	}
	if len(created) > 0 {
		logger.Printf("Created %d signals", len(created))
	}
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
