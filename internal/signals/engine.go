// Package signals creates trade signals and manages their pending lifecycle.
package signals

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/observability"
	"crypto-trade-desk/internal/storage"
)

var (
	// ErrInvalidConfidence means confidence is outside the 0..100 scale.
	ErrInvalidConfidence = errors.New("confidence out of range")

	// ErrLowConfidence means confidence is below the configured threshold.
	ErrLowConfidence = errors.New("confidence below threshold")

	// ErrInvalidPrices means the price levels are not ordered for the direction.
	ErrInvalidPrices = errors.New("invalid price levels")
)

// Config controls signal admission.
type Config struct {
	MinConfidence decimal.Decimal // inclusive threshold, default 90
	ExpiryHorizon time.Duration   // pending lifetime, default 4h
}

// DefaultConfig returns the production signal admission settings.
func DefaultConfig() Config {
	return Config{
		MinConfidence: decimal.NewFromInt(90),
		ExpiryHorizon: 4 * time.Hour,
	}
}

// Engine validates candidate signals and persists the admitted ones as PENDING.
type Engine struct {
	store  storage.SignalStore
	cfg    Config
	logger *log.Logger
}

// NewEngine creates a new signal engine.
func NewEngine(store storage.SignalStore, cfg Config, logger *log.Logger) *Engine {
	if cfg.MinConfidence.IsZero() {
		cfg.MinConfidence = decimal.NewFromInt(90)
	}
	if cfg.ExpiryHorizon == 0 {
		cfg.ExpiryHorizon = 4 * time.Hour
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{store: store, cfg: cfg, logger: logger}
}

// CreateRequest is a candidate signal from the analysis layer.
type CreateRequest struct {
	Symbol          string
	SignalType      domain.SignalType
	Confidence      decimal.Decimal
	EntryPrice      decimal.Decimal
	StopLossPrice   decimal.Decimal
	TakeProfitPrice decimal.Decimal
	AnalysisSummary string
	TechnicalData   map[string]any
}

// CreateSignal validates a candidate and stores it as PENDING with an expiry
// deadline of now + horizon. Validation failures are reported through the
// sentinel errors so callers can distinguish drops from storage faults.
func (e *Engine) CreateSignal(ctx context.Context, req CreateRequest, now time.Time) (*domain.Signal, error) {
	if req.Symbol == "" || !req.SignalType.IsValid() {
		return nil, fmt.Errorf("%w: missing symbol or direction", ErrInvalidPrices)
	}

	if req.Confidence.IsNegative() || req.Confidence.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfidence, req.Confidence)
	}
	if req.Confidence.LessThan(e.cfg.MinConfidence) {
		observability.RecordSignalDropped("low_confidence")
		return nil, fmt.Errorf("%w: %s < %s", ErrLowConfidence, req.Confidence, e.cfg.MinConfidence)
	}

	if !domain.PriceLevelsValid(req.SignalType, req.EntryPrice, req.StopLossPrice, req.TakeProfitPrice) {
		observability.RecordSignalDropped("invalid_prices")
		return nil, fmt.Errorf("%w: %s entry=%s sl=%s tp=%s",
			ErrInvalidPrices, req.SignalType, req.EntryPrice, req.StopLossPrice, req.TakeProfitPrice)
	}

	expiresAt := now.Add(e.cfg.ExpiryHorizon)
	sig := &domain.Signal{
		ID:              uuid.NewString(),
		Symbol:          req.Symbol,
		SignalType:      req.SignalType,
		Confidence:      req.Confidence,
		EntryPrice:      req.EntryPrice,
		StopLossPrice:   req.StopLossPrice,
		TakeProfitPrice: req.TakeProfitPrice,
		Status:          domain.SignalStatusPending,
		AnalysisSummary: req.AnalysisSummary,
		TechnicalData:   req.TechnicalData,
		ExpiresAt:       &expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.store.Insert(ctx, sig); err != nil {
		return nil, fmt.Errorf("store signal: %w", err)
	}

	observability.RecordSignalCreated(sig.SignalType.String())
	e.logger.Printf("[signals] created %s %s %s conf=%s entry=%s",
		sig.ID, sig.SignalType, sig.Symbol, sig.Confidence, sig.EntryPrice)

	return sig, nil
}
