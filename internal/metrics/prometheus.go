package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PoolSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holdersync_pool_syncs_total",
			Help: "Pool sync attempts by outcome",
		},
		[]string{"status"}, // success|no_holders|persistence_failure|in_progress|error
	)

	PoolSyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "holdersync_pool_sync_duration_seconds",
			Help:    "Pool sync duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"chain"},
	)

	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holdersync_provider_calls_total",
			Help: "Provider adapter calls by capability and outcome",
		},
		[]string{"provider", "capability", "status"}, // status: success|empty|error|rate_limited
	)

	PriceResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holdersync_price_resolutions_total",
			Help: "Token price resolutions by tier",
		},
		[]string{"source"},
	)

	BulkRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holdersync_bulk_runs_total",
			Help: "Bulk sync runs by outcome",
		},
		[]string{"outcome"}, // completed|skipped|cancelled
	)

	BulkRunPools = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "holdersync_bulk_run_pools",
			Help: "Pool counts of the last bulk run",
		},
		[]string{"result"}, // succeeded|failed
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(PoolSyncs)
		prometheus.MustRegister(PoolSyncDuration)
		prometheus.MustRegister(ProviderCalls)
		prometheus.MustRegister(PriceResolutions)
		prometheus.MustRegister(BulkRuns)
		prometheus.MustRegister(BulkRunPools)
	})
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPoolSync records the outcome and duration of one pool sync.
func RecordPoolSync(chain, status string, duration time.Duration) {
	PoolSyncs.WithLabelValues(status).Inc()
	PoolSyncDuration.WithLabelValues(chain).Observe(duration.Seconds())
}

// RecordProviderCall records one adapter call.
func RecordProviderCall(provider, capability, status string) {
	ProviderCalls.WithLabelValues(provider, capability, status).Inc()
}

// RecordPriceResolution records which tier produced a price.
func RecordPriceResolution(source string) {
	PriceResolutions.WithLabelValues(source).Inc()
}

// RecordBulkRun records a finished or skipped bulk run.
func RecordBulkRun(outcome string, succeeded, failed int) {
	BulkRuns.WithLabelValues(outcome).Inc()
	if outcome == "skipped" {
		return
	}
	BulkRunPools.WithLabelValues("succeeded").Set(float64(succeeded))
	BulkRunPools.WithLabelValues("failed").Set(float64(failed))
}
