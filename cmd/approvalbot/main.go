// Package main runs the Telegram approval bot: it posts pending signals to
// the operator chat and applies approve/reject decisions.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crypto-trade-desk/internal/approval"
	"crypto-trade-desk/internal/notify"
	"crypto-trade-desk/internal/storage/migrations"
	pgstore "crypto-trade-desk/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	token := flag.String("telegram-token", os.Getenv("TELEGRAM_BOT_TOKEN"), "Telegram bot token")
	chatID := flag.Int64("telegram-chat-id", envInt64("TELEGRAM_CHAT_ID"), "Operator chat id for approval requests")
	postInterval := flag.Duration("post-interval", 15*time.Second, "Poll interval for unposted pending signals")

	flag.Parse()

	logger := log.New(os.Stdout, "[approvalbot] ", log.LstdFlags|log.Lshortfile)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if *token == "" || *chatID == 0 {
		logger.Fatal("--telegram-token and --telegram-chat-id are required")
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

	signalStore := pgstore.NewSignalStore(pool)
	gateway := approval.NewGateway(signalStore, logger)

	notifier, err := notify.NewNotifier(
		notify.Config{Token: *token, ChatID: *chatID},
		gateway,
		signalStore,
		pgstore.NewTradeStore(pool),
		pgstore.NewPortfolioStore(pool),
		logger,
	)
	if err != nil {
		logger.Fatalf("Failed to create telegram notifier: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	go notifier.RunPoster(ctx, *postInterval)
	notifier.Run(ctx)

	logger.Println("Shutdown complete")
}

func envInt64(key string) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
