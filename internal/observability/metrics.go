// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	BacktestRequestsTotal *prometheus.CounterVec
	BacktestDuration      prometheus.Histogram
	TradesSimulated       prometheus.Counter
	SummariesComputed     prometheus.Counter
	ReportsGenerated      prometheus.Counter

	// Campaign metrics
	AttemptsTotal      *prometheus.CounterVec
	AttemptDuration    *prometheus.HistogramVec
	LedgerSaves        prometheus.Counter
	StrategiesPromoted prometheus.Counter
	DegradedAttempts   prometheus.Counter

	// Provider metrics
	ProviderRequests   *prometheus.CounterVec
	ProviderLatency    *prometheus.HistogramVec
	CandlesFetched     prometheus.Counter
	StreamedCandles    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "strategylab"
	}

	return &Metrics{
		// Backtest metrics
		BacktestRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "requests_total",
			Help:      "Total number of backtest requests by status",
		}, []string{"status"}),
		BacktestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TradesSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_simulated_total",
			Help:      "Total number of trades simulated",
		}),
		SummariesComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "summaries_computed_total",
			Help:      "Total number of strategy summaries computed",
		}),
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		// Campaign metrics
		AttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "attempts_total",
			Help:      "Total number of campaign attempts by status",
		}, []string{"status"}),
		AttemptDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "attempt_duration_seconds",
			Help:      "Campaign attempt duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"strategy_id"}),
		LedgerSaves: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "ledger_saves_total",
			Help:      "Total number of ledger snapshots persisted",
		}),
		StrategiesPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "strategies_promoted_total",
			Help:      "Total number of strategies promoted to proven",
		}),
		DegradedAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "degraded_attempts_total",
			Help:      "Total number of attempts that completed degraded",
		}),

		// Provider metrics
		ProviderRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Total number of provider requests by provider and status",
		}, []string{"provider", "status"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_latency_seconds",
			Help:      "Provider request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		CandlesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "candles_fetched_total",
			Help:      "Total number of candles fetched over HTTP",
		}),
		StreamedCandles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "candles_streamed_total",
			Help:      "Total number of candles received over WebSocket",
		}),

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
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBacktest records one backtest request.
func RecordBacktest(status string, durationSeconds float64) {
	DefaultMetrics.BacktestRequestsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.BacktestDuration.Observe(durationSeconds)
}

// RecordTradesSimulated adds to the simulated trade counter.
func RecordTradesSimulated(n int) {
	DefaultMetrics.TradesSimulated.Add(float64(n))
}

// RecordAttempt records a campaign attempt outcome.
func RecordAttempt(strategyID, status string, durationSeconds float64) {
	DefaultMetrics.AttemptsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.AttemptDuration.WithLabelValues(strategyID).Observe(durationSeconds)
}

// RecordLedgerSave increments the ledger save counter.
func RecordLedgerSave() {
	DefaultMetrics.LedgerSaves.Inc()
}

// RecordDegradedAttempt increments the degraded attempt counter.
func RecordDegradedAttempt() {
	DefaultMetrics.DegradedAttempts.Inc()
}

// RecordPromotion increments the promoted strategies counter.
func RecordPromotion() {
	DefaultMetrics.StrategiesPromoted.Inc()
}

// RecordProviderRequest records a provider request with its status.
func RecordProviderRequest(provider, status string, seconds float64) {
	DefaultMetrics.ProviderRequests.WithLabelValues(provider, status).Inc()
	DefaultMetrics.ProviderLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
