// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Signal lifecycle metrics
	SignalsCreated  *prometheus.CounterVec
	SignalsApproved prometheus.Counter
	SignalsRejected prometheus.Counter
	SignalsExpired  prometheus.Counter
	SignalsDropped  *prometheus.CounterVec

	// Execution metrics
	TradesExecuted          prometheus.Counter
	MissedExecutions        *prometheus.CounterVec
	BrokerPlacementFailures prometheus.Counter
	TradesClosed            *prometheus.CounterVec
	RealizedPnl             prometheus.Gauge
	OpenPositions           prometheus.Gauge

	// Collection metrics
	CandlesCollected    prometheus.Counter
	SentimentCollected  prometheus.Counter
	CollectionErrors    *prometheus.CounterVec
	ExchangeCallLatency *prometheus.HistogramVec

	// Cycle metrics
	CycleRunsTotal *prometheus.CounterVec
	CycleDuration  *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulCycle      prometheus.Gauge
	LastSuccessfulCollection prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_trade_desk"
	}

	return &Metrics{
		// Signal lifecycle metrics
		SignalsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "created_total",
			Help:      "Total number of signals created by direction",
		}, []string{"signal_type"}),
		SignalsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "approved_total",
			Help:      "Total number of signals approved by an operator",
		}),
		SignalsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "rejected_total",
			Help:      "Total number of signals rejected by an operator",
		}),
		SignalsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "expired_total",
			Help:      "Total number of signals expired by the sweeper",
		}),
		SignalsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "dropped_total",
			Help:      "Total number of candidate signals dropped before creation",
		}, []string{"reason"}),

		// Execution metrics
		TradesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_executed_total",
			Help:      "Total number of trades opened from approved signals",
		}),
		MissedExecutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "missed_executions_total",
			Help:      "Total number of approved signals that could not be sized",
		}, []string{"reason"}),
		BrokerPlacementFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "broker_placement_failures_total",
			Help:      "Total number of order placements rejected by the exchange",
		}),
		TradesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_closed_total",
			Help:      "Total number of trades closed by reason",
		}, []string{"reason"}),
		RealizedPnl: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "realized_pnl",
			Help:      "Cumulative realized P&L in quote currency",
		}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "open_positions",
			Help:      "Current number of open positions",
		}),

		// Collection metrics
		CandlesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "candles_collected_total",
			Help:      "Total number of candles stored",
		}),
		SentimentCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "sentiment_points_collected_total",
			Help:      "Total number of sentiment readings stored",
		}),
		CollectionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "errors_total",
			Help:      "Total number of collection errors by source",
		}, []string{"source"}),
		ExchangeCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "call_latency_seconds",
			Help:      "Exchange API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Cycle metrics
		CycleRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total number of trading cycle runs by status",
		}, []string{"phase", "status"}),
		CycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Trading cycle phase duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"phase"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last successful trading cycle",
		}),
		LastSuccessfulCollection: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_collection_timestamp",
			Help:      "Unix timestamp of last successful data collection",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSignalCreated increments the signals created counter.
func RecordSignalCreated(signalType string) {
	DefaultMetrics.SignalsCreated.WithLabelValues(signalType).Inc()
}

// RecordSignalApproved increments the signals approved counter.
func RecordSignalApproved() {
	DefaultMetrics.SignalsApproved.Inc()
}

// RecordSignalRejected increments the signals rejected counter.
func RecordSignalRejected() {
	DefaultMetrics.SignalsRejected.Inc()
}

// RecordSignalsExpired adds to the signals expired counter.
func RecordSignalsExpired(n int64) {
	DefaultMetrics.SignalsExpired.Add(float64(n))
}

// RecordSignalDropped records a candidate signal dropped before creation.
func RecordSignalDropped(reason string) {
	DefaultMetrics.SignalsDropped.WithLabelValues(reason).Inc()
}

// RecordTradeExecuted increments the trades executed counter.
func RecordTradeExecuted() {
	DefaultMetrics.TradesExecuted.Inc()
}

// RecordMissedExecution records an approved signal that could not be sized.
func RecordMissedExecution(reason string) {
	DefaultMetrics.MissedExecutions.WithLabelValues(reason).Inc()
}

// RecordBrokerFailure increments the broker placement failures counter.
func RecordBrokerFailure() {
	DefaultMetrics.BrokerPlacementFailures.Inc()
}

// RecordTradeClosed increments the closed trades counter by reason.
func RecordTradeClosed(reason string) {
	DefaultMetrics.TradesClosed.WithLabelValues(reason).Inc()
}

// SetRealizedPnl updates the cumulative realized P&L gauge.
func SetRealizedPnl(total float64) {
	DefaultMetrics.RealizedPnl.Set(total)
}

// UpdateOpenPositions updates the open positions gauge.
func UpdateOpenPositions(n int) {
	DefaultMetrics.OpenPositions.Set(float64(n))
}

// RecordCandlesCollected adds to the candles collected counter.
func RecordCandlesCollected(n int) {
	DefaultMetrics.CandlesCollected.Add(float64(n))
}

// RecordSentimentCollected increments the sentiment points collected counter.
func RecordSentimentCollected() {
	DefaultMetrics.SentimentCollected.Inc()
}

// RecordCollectionError records a collection error by source.
func RecordCollectionError(source string) {
	DefaultMetrics.CollectionErrors.WithLabelValues(source).Inc()
}

// RecordExchangeCall records exchange API call latency.
func RecordExchangeCall(method string, seconds float64) {
	DefaultMetrics.ExchangeCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordCycleRun records a trading cycle phase run.
func RecordCycleRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.CycleRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.CycleDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// MarkCycleSuccess stamps the last successful trading cycle gauge.
func MarkCycleSuccess(t time.Time) {
	DefaultMetrics.LastSuccessfulCycle.Set(float64(t.Unix()))
}

// MarkCollectionSuccess stamps the last successful collection pass gauge.
func MarkCollectionSuccess(t time.Time) {
	DefaultMetrics.LastSuccessfulCollection.Set(float64(t.Unix()))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
