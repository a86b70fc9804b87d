// Package main runs the trading service: portfolio sync, execution of
// approved signals, position monitoring and the pending-signal sweeper.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/exchange"
	"crypto-trade-desk/internal/exchange/binance"
	"crypto-trade-desk/internal/exchange/paper"
	"crypto-trade-desk/internal/observability"
	"crypto-trade-desk/internal/portfolio"
	"crypto-trade-desk/internal/signals"
	"crypto-trade-desk/internal/storage"
	"crypto-trade-desk/internal/storage/memory"
	"crypto-trade-desk/internal/storage/migrations"
	pgstore "crypto-trade-desk/internal/storage/postgres"
	"crypto-trade-desk/internal/trading"
)

// Server holds the trading service runtime state for the status endpoint.
type Server struct {
	logger *log.Logger

	mu      sync.Mutex
	started time.Time
}

func main() {
	// Load .env if present; system env wins.
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	usePaper := flag.Bool("paper", envBool("PAPER_TRADING"), "Use the paper exchange instead of Binance")
	testnet := flag.Bool("testnet", envBool("BINANCE_TESTNET"), "Use the Binance testnet")
	symbols := flag.String("symbols", envDefault("TRADE_SYMBOLS", "BTC/USDT,ETH/USDT"), "Comma-separated trading symbols")
	quoteAsset := flag.String("quote-asset", envDefault("QUOTE_ASSET", "USDT"), "Quote asset for balance tracking")
	riskFraction := flag.Float64("risk-fraction", 0.02, "Fraction of available balance risked per trade")
	maxPositions := flag.Int("max-positions", 5, "Maximum concurrent open positions")
	cycleInterval := flag.Duration("cycle-interval", 30*time.Second, "Trading cycle interval")
	sweepInterval := flag.Duration("sweep-interval", time.Minute, "Pending signal expiry sweep interval")
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for health/metrics/status")

	flag.Parse()

	logger := log.New(os.Stdout, "[trader] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if !*usePaper && (os.Getenv("BINANCE_API_KEY") == "" || os.Getenv("BINANCE_API_SECRET") == "") {
		logger.Fatal("BINANCE_API_KEY and BINANCE_API_SECRET are required (use --paper for the paper exchange)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalStore, tradeStore, portfolioStore, cleanup, err := createStores(ctx, *postgresDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	symbolList := splitList(*symbols)
	ex := createExchange(ctx, *usePaper, *testnet, symbolList, logger)

	tracker := portfolio.NewTracker(portfolioStore, ex, logger)
	executor := trading.NewExecutor(signalStore, tradeStore, portfolioStore, ex, trading.ExecutorConfig{
		QuoteAsset:       *quoteAsset,
		RiskFraction:     decimal.NewFromFloat(*riskFraction),
		MaxOpenPositions: *maxPositions,
		LotSizes:         lotSizesFromEnv(logger),
	}, logger)
	ledger := trading.NewLedger(tradeStore, logger)
	monitor := trading.NewMonitor(tradeStore, ex, ledger, logger)
	runner := trading.NewRunner(tracker, executor, monitor, trading.RunnerOptions{
		QuoteAsset: *quoteAsset,
		Interval:   *cycleInterval,
		Logger:     logger,
	})
	sweeper := signals.NewSweeper(signalStore, *sweepInterval, logger)

	server := &Server{logger: logger, started: time.Now()}

	// Handle shutdown signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	go server.startHTTPServer(*httpAddr)
	go sweeper.Run(ctx)

	runner.Run(ctx)

	logger.Println("Shutdown complete")
}

// createStores returns the trading stores, either Postgres-backed with
// migrations applied or in-memory.
func createStores(ctx context.Context, postgresDSN string, useMemory bool) (storage.SignalStore, storage.TradeStore, storage.PortfolioStore, func(), error) {
	if useMemory {
		return memory.NewSignalStore(), memory.NewTradeStore(), memory.NewPortfolioStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	cleanup := func() { pool.Close() }
	return pgstore.NewSignalStore(pool), pgstore.NewTradeStore(pool), pgstore.NewPortfolioStore(pool), cleanup, nil
}

// createExchange builds the paper or Binance client. With Binance the
// websocket ticker stream is started for the traded symbols.
func createExchange(ctx context.Context, usePaper, testnet bool, symbols []string, logger *log.Logger) exchange.Client {
	if usePaper {
		logger.Println("Paper trading mode: no real orders will be placed")
		return paper.New()
	}

	client := binance.New(binance.Config{
		APIKey:    os.Getenv("BINANCE_API_KEY"),
		APISecret: os.Getenv("BINANCE_API_SECRET"),
		Testnet:   testnet,
	})
	client.StartTicker(ctx, symbols, testnet, logger)
	return client
}

// lotSizesFromEnv parses LOT_SIZES, e.g. "BTC/USDT=0.00001,ETH/USDT=0.0001".
func lotSizesFromEnv(logger *log.Logger) map[string]decimal.Decimal {
	raw := os.Getenv("LOT_SIZES")
	if raw == "" {
		return nil
	}

	sizes := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			logger.Printf("Skipping malformed LOT_SIZES entry %q", pair)
			continue
		}
		size, err := decimal.NewFromString(parts[1])
		if err != nil {
			logger.Printf("Skipping LOT_SIZES entry %q: %v", pair, err)
			continue
		}
		sizes[parts[0]] = size
	}
	return sizes
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

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

// startHTTPServer serves health, metrics and status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status  string    `json:"status"`
	Uptime  string    `json:"uptime"`
	Started time.Time `json:"started"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:  "running",
		Uptime:  time.Since(s.started).String(),
		Started: s.started,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
