package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// PagesFetched counts vendor list pages fetched, by endpoint path.
	PagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vendor_pages_fetched_total", Help: "Vendor list pages fetched."},
		[]string{"path"},
	)
	// TokenMints counts token mint attempts by outcome.
	TokenMints = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vendor_token_mints_total", Help: "Vendor access-token mints by outcome."},
		[]string{"outcome"},
	)
	// OrdersUpserted counts order records written to the local mirror.
	OrdersUpserted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "sync_orders_upserted_total", Help: "Order records upserted by incremental sync."},
	)
	// SyncRuns counts per-shop sync runs by outcome.
	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sync_runs_total", Help: "Per-shop incremental sync runs by outcome."},
		[]string{"outcome"},
	)
	// SyncDuration records per-shop sync run durations in seconds.
	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "sync_run_duration_seconds", Help: "Per-shop sync run duration in seconds.", Buckets: prometheus.DefBuckets},
	)
	// CacheRequests counts cache tier lookups by tier and result.
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cache_requests_total", Help: "Cache tier lookups by tier and result."},
		[]string{"tier", "result"},
	)
	// CacheWriteFailures counts best-effort tier writes that failed.
	CacheWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cache_write_failures_total", Help: "Best-effort cache tier write failures."},
		[]string{"tier"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(PagesFetched)
		Registry.MustRegister(TokenMints)
		Registry.MustRegister(OrdersUpserted)
		Registry.MustRegister(SyncRuns)
		Registry.MustRegister(SyncDuration)
		Registry.MustRegister(CacheRequests)
		Registry.MustRegister(CacheWriteFailures)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
