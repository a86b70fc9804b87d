// Package trading turns approved signals into positions and settles them.
package trading

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/exchange"
	"crypto-trade-desk/internal/observability"
	"crypto-trade-desk/internal/risk"
	"crypto-trade-desk/internal/storage"
)

// ExecutorConfig controls sizing and capacity for trade execution.
type ExecutorConfig struct {
	QuoteAsset       string                     // balance asset, e.g. USDT
	RiskFraction     decimal.Decimal            // default 0.02
	MaxOpenPositions int                        // default 5
	LotSizes         map[string]decimal.Decimal // per-symbol step size, optional
}

// Executor opens positions for approved signals. The MarkExecuted
// conditional update is the claim: whichever worker flips the status owns
// the placement, every other caller gets ErrAlreadyProcessed.
type Executor struct {
	signals   storage.SignalStore
	trades    storage.TradeStore
	portfolio storage.PortfolioStore
	exchange  exchange.Client
	cfg       ExecutorConfig
	logger    *log.Logger
}

// NewExecutor creates a trade executor.
func NewExecutor(signals storage.SignalStore, trades storage.TradeStore, portfolio storage.PortfolioStore, ex exchange.Client, cfg ExecutorConfig, logger *log.Logger) *Executor {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	if cfg.RiskFraction.IsZero() {
		cfg.RiskFraction = decimal.NewFromFloat(0.02)
	}
	if cfg.MaxOpenPositions == 0 {
		cfg.MaxOpenPositions = 5
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{
		signals:   signals,
		trades:    trades,
		portfolio: portfolio,
		exchange:  ex,
		cfg:       cfg,
		logger:    logger,
	}
}

// Execute opens a position for one approved signal.
//
// The signal is claimed (APPROVED→EXECUTED) before any money moves. When
// sizing then fails the signal stays EXECUTED and the miss is recorded; it
// must never drop back into the executable pool. A broker rejection after
// the claim is surfaced as ErrBrokerPlacement for the operator to resolve.
func (e *Executor) Execute(ctx context.Context, signalID string, now time.Time) (*domain.Trade, error) {
	sig, err := e.signals.GetByID(ctx, signalID)
	if err != nil {
		return nil, fmt.Errorf("load signal %s: %w", signalID, err)
	}

	applied, err := e.signals.MarkExecuted(ctx, sig.ID, now)
	if err != nil {
		return nil, fmt.Errorf("claim signal %s: %w", sig.ID, err)
	}
	if !applied {
		return nil, fmt.Errorf("signal %s: %w", sig.ID, ErrAlreadyProcessed)
	}

	snap, err := e.portfolio.Latest(ctx, e.cfg.QuoteAsset)
	if err != nil {
		observability.RecordMissedExecution("no_balance_snapshot")
		return nil, fmt.Errorf("load %s balance: %w", e.cfg.QuoteAsset, err)
	}

	openCount, err := e.trades.CountOpen(ctx)
	if err != nil {
		observability.RecordMissedExecution("count_open")
		return nil, fmt.Errorf("count open trades: %w", err)
	}

	qty, err := risk.Quantity(risk.Sizing{
		AvailableBalance: snap.AvailableBalance,
		RiskFraction:     e.cfg.RiskFraction,
		EntryPrice:       sig.EntryPrice,
		StopLossPrice:    sig.StopLossPrice,
		LotSize:          e.cfg.LotSizes[sig.Symbol],
		MaxOpenPositions: e.cfg.MaxOpenPositions,
		OpenPositions:    openCount,
	})
	if err != nil {
		observability.RecordMissedExecution(missReason(err))
		e.logger.Printf("[executor] signal %s not sized: %v", sig.ID, err)
		return nil, fmt.Errorf("size signal %s: %w", sig.ID, err)
	}

	refs, err := e.exchange.PlaceBracketOrder(ctx, exchange.BracketOrder{
		Symbol:          sig.Symbol,
		Side:            sig.SignalType,
		Quantity:        qty,
		EntryPrice:      sig.EntryPrice,
		StopLossPrice:   sig.StopLossPrice,
		TakeProfitPrice: sig.TakeProfitPrice,
	})
	if err != nil {
		observability.RecordBrokerFailure()
		e.logger.Printf("[executor] CRITICAL: signal %s claimed but placement failed: %v", sig.ID, err)
		return nil, fmt.Errorf("%w: signal %s: %v", ErrBrokerPlacement, sig.ID, err)
	}

	trade := &domain.Trade{
		ID:              uuid.NewString(),
		SignalID:        &sig.ID,
		Symbol:          sig.Symbol,
		Side:            sig.SignalType,
		EntryPrice:      sig.EntryPrice,
		Quantity:        qty,
		StopLossPrice:   sig.StopLossPrice,
		TakeProfitPrice: sig.TakeProfitPrice,
		Status:          domain.TradeStatusOpen,
		ExchangeOrderID: &refs.EntryOrderID,
		SLOrderID:       &refs.StopOrderID,
		TPOrderID:       &refs.TakeProfitOrderID,
		OpenedAt:        now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.trades.Insert(ctx, trade); err != nil {
		e.logger.Printf("[executor] CRITICAL: trade for signal %s placed but not recorded: %v", sig.ID, err)
		return nil, fmt.Errorf("record trade for signal %s: %w", sig.ID, err)
	}

	observability.RecordTradeExecuted()
	observability.UpdateOpenPositions(openCount + 1)
	e.logger.Printf("[executor] opened %s %s %s qty=%s entry=%s",
		trade.ID, trade.Side, trade.Symbol, trade.Quantity, trade.EntryPrice)

	return trade, nil
}

// ExecuteApproved runs Execute over every approved signal, oldest first.
// Lost claims and sizing misses are logged and skipped; only storage faults
// stop the pass.
func (e *Executor) ExecuteApproved(ctx context.Context, now time.Time) (int, error) {
	approved, err := e.signals.ListByStatus(ctx, domain.SignalStatusApproved)
	if err != nil {
		return 0, fmt.Errorf("list approved signals: %w", err)
	}

	executed := 0
	for _, sig := range approved {
		_, err := e.Execute(ctx, sig.ID, now)
		switch {
		case err == nil:
			executed++
		case errors.Is(err, ErrAlreadyProcessed):
			// Another worker won the claim.
		case errors.Is(err, risk.ErrCapacityExceeded):
			// The book is full; later signals cannot fit either.
			e.logger.Printf("[executor] capacity reached, %d approved signals left for next cycle", len(approved)-executed-1)
			return executed, nil
		default:
			e.logger.Printf("[executor] signal %s failed: %v", sig.ID, err)
		}
	}
	return executed, nil
}

// missReason maps a sizing failure to a metrics label.
func missReason(err error) string {
	switch {
	case errors.Is(err, risk.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, risk.ErrInvalidPriceLevels):
		return "invalid_price_levels"
	case errors.Is(err, risk.ErrInsufficientBalance):
		return "insufficient_balance"
	}
	return "unknown"
}
