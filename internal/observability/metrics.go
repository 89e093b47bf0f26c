package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for RainLedger.
type Metrics struct {
	// --- Engine ---
	EngineOpsApplied  *prometheus.CounterVec
	EngineOpsRejected *prometheus.CounterVec
	EngineOpDuration  *prometheus.HistogramVec

	// --- Options ---
	OptionsCreated  prometheus.Counter
	OptionsSettled  prometheus.Counter
	OptionsActive   prometheus.Gauge
	PremiumsTotal   prometheus.Counter
	PayoutsTotal    prometheus.Counter
	FeeRevenue      prometheus.Gauge
	QuotesRequested prometheus.Counter
	QuotesConsumed  prometheus.Counter

	// --- Vault ---
	VaultAssets         prometheus.Gauge
	VaultLocked         prometheus.Gauge
	VaultUtilizationBps prometheus.Gauge
	VaultDeposits       prometheus.Counter
	VaultWithdrawals    prometheus.Counter

	// --- Reinsurance ---
	ReinsuranceBalance prometheus.Gauge
	ReinsuranceDrawn   prometheus.Counter
	ReinsuranceYield   prometheus.Counter

	// --- Oracle ---
	OracleRequestsOpened   *prometheus.CounterVec
	OracleFulfillments     *prometheus.CounterVec
	OracleFulfillLatency   *prometheus.HistogramVec
	OracleMalformedDropped prometheus.Counter

	// --- Sweep ---
	SweepRuns     prometheus.Counter
	SweepActions  *prometheus.CounterVec
	SweepDuration prometheus.Histogram

	// --- Persistence ---
	PersistRecordsWritten prometheus.Counter
	PersistBatchSize      prometheus.Histogram
	PersistBatchDur       prometheus.Histogram
	PersistErrors         *prometheus.CounterVec
	PersistRetry          prometheus.Counter
	ProjectionDrops       prometheus.Counter

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	CacheHits    *prometheus.CounterVec
	CacheMisses  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		EngineOpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rain_engine_ops_applied_total",
			Help: "Operations successfully applied by the engine",
		}, []string{"op"}),

		EngineOpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rain_engine_ops_rejected_total",
			Help: "Operations rejected (validation, capacity, authorization)",
		}, []string{"op", "reason"}),

		EngineOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rain_engine_op_duration_seconds",
			Help:    "Time to apply a single operation under the engine lock",
			Buckets: opBuckets,
		}, []string{"op"}),

		OptionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_options_created_total",
			Help: "Options underwritten",
		}),

		OptionsSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_options_settled_total",
			Help: "Options settled",
		}),

		OptionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rain_options_active",
			Help: "Options not yet settled",
		}),

		PremiumsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_premiums_collected_total",
			Help: "Premium collected (capital units)",
		}),

		PayoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_payouts_paid_total",
			Help: "Payouts released to beneficiaries (capital units)",
		}),

		FeeRevenue: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rain_fee_revenue",
			Help: "Protocol fee revenue not yet withdrawn",
		}),

		QuotesRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_quotes_requested_total",
			Help: "Premium quotes opened",
		}),

		QuotesConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_quotes_consumed_total",
			Help: "Quotes converted into options",
		}),

		VaultAssets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rain_vault_assets",
			Help: "Vault total assets (capital units)",
		}),

		VaultLocked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rain_vault_locked",
			Help: "Vault collateral locked against open options",
		}),

		VaultUtilizationBps: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rain_vault_utilization_bps",
			Help: "Locked / assets in basis points",
		}),

		VaultDeposits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_vault_deposits_total",
			Help: "LP deposits into the vault",
		}),

		VaultWithdrawals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_vault_withdrawals_total",
			Help: "LP withdrawals from the vault",
		}),

		ReinsuranceBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rain_reinsurance_balance",
			Help: "Reinsurance pool balance (capital units)",
		}),

		ReinsuranceDrawn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_reinsurance_drawn_total",
			Help: "Capital drawn from reinsurance into the vault",
		}),

		ReinsuranceYield: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_reinsurance_yield_total",
			Help: "Reinsurance yield claimed by depositors",
		}),

		OracleRequestsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rain_oracle_requests_opened_total",
			Help: "Oracle requests opened",
		}, []string{"kind"}),

		OracleFulfillments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rain_oracle_fulfillments_total",
			Help: "Oracle fulfillments received (fulfilled/failed)",
		}, []string{"kind", "outcome"}),

		OracleFulfillLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rain_oracle_fulfill_latency_seconds",
			Help:    "Request open to fulfillment received",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"kind"}),

		OracleMalformedDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_oracle_malformed_dropped_total",
			Help: "Malformed oracle fulfillment messages dropped",
		}),

		SweepRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_sweep_runs_total",
			Help: "Settlement sweep passes",
		}),

		SweepActions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rain_sweep_actions_total",
			Help: "Per-option sweep outcomes",
		}, []string{"action"}),

		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rain_sweep_duration_seconds",
			Help:    "Time for one sweep pass",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		PersistRecordsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_persist_records_written_total",
			Help: "Ledger records written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rain_persist_batch_size",
			Help:    "Records per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rain_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rain_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_persist_retry_total",
			Help: "Persistence retries",
		}),

		ProjectionDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rain_projection_drops_total",
			Help: "Records dropped due to a full projection channel",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rain_http_requests_total",
			Help: "HTTP API requests",
		}, []string{"endpoint", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rain_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rain_cache_hits_total",
			Help: "Redis view-cache hits",
		}, []string{"view"}),

		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rain_cache_misses_total",
			Help: "Redis view-cache misses",
		}, []string{"view"}),
	}
}
