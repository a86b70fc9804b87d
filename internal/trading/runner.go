package trading

import (
	"context"
	"log"
	"time"

	"crypto-trade-desk/internal/observability"
	"crypto-trade-desk/internal/portfolio"
)

// Runner drives the trading cycle: refresh the balance, execute approved
// signals, then check open positions against the market.
type Runner struct {
	tracker  *portfolio.Tracker
	executor *Executor
	monitor  *Monitor

	quoteAsset string
	interval   time.Duration
	logger     *log.Logger
}

// RunnerOptions configures the trading cycle.
type RunnerOptions struct {
	QuoteAsset string        // default USDT
	Interval   time.Duration // default 30s
	Logger     *log.Logger
}

// NewRunner creates a trading cycle runner.
func NewRunner(tracker *portfolio.Tracker, executor *Executor, monitor *Monitor, opts RunnerOptions) *Runner {
	if opts.QuoteAsset == "" {
		opts.QuoteAsset = "USDT"
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Runner{
		tracker:    tracker,
		executor:   executor,
		monitor:    monitor,
		quoteAsset: opts.QuoteAsset,
		interval:   opts.Interval,
		logger:     opts.Logger,
	}
}

// Cycle runs one trading pass. A failed balance sync skips execution for
// this pass since sizing needs a fresh snapshot, but position monitoring
// still runs: protective exits must not wait on the portfolio store.
func (r *Runner) Cycle(ctx context.Context, now time.Time) {
	syncErr := r.phase(ctx, "portfolio_sync", func(ctx context.Context) error {
		_, err := r.tracker.Sync(ctx, r.quoteAsset, now)
		return err
	})

	if syncErr == nil {
		r.phase(ctx, "execute_approved", func(ctx context.Context) error {
			n, err := r.executor.ExecuteApproved(ctx, now)
			if n > 0 {
				r.logger.Printf("[runner] executed %d approved signals", n)
			}
			return err
		})
	} else {
		r.logger.Printf("[runner] balance sync failed, skipping execution this cycle")
	}

	err := r.phase(ctx, "check_positions", func(ctx context.Context) error {
		n, err := r.monitor.CheckPositions(ctx, now)
		if n > 0 {
			r.logger.Printf("[runner] closed %d positions", n)
		}
		return err
	})
	if err == nil && syncErr == nil {
		observability.MarkCycleSuccess(now)
	}
}

// phase runs one cycle step with timing and outcome metrics.
func (r *Runner) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		r.logger.Printf("[runner] %s failed: %v", name, err)
	}
	observability.RecordCycleRun(name, status, time.Since(start).Seconds())
	return err
}

// Run executes trading cycles on the configured interval until the context
// is canceled. The first cycle runs immediately.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Printf("[runner] trading cycle started, interval %s", r.interval)

	r.Cycle(ctx, time.Now().UTC())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Printf("[runner] trading cycle stopped")
			return
		case now := <-ticker.C:
			r.Cycle(ctx, now.UTC())
		}
	}
}
