package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagedex",
			Name:      "search_requests_total",
			Help:      "Total number of executed search requests",
		},
		[]string{"index", "status"},
	)

	SearchRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pagedex",
			Name:      "search_request_duration_seconds",
			Help:      "Search request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"index"},
	)

	SlowQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pagedex",
			Name:      "slow_queries_total",
			Help:      "Requests exceeding the slow-query threshold",
		},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagedex",
			Name:      "result_cache_total",
			Help:      "Result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pagedex",
			Name:      "result_cache_evictions_total",
			Help:      "Entries evicted from the result cache",
		},
	)

	PageFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagedex",
			Name:      "page_fetches_total",
			Help:      "Pages loaded by paginator kind",
		},
		[]string{"kind"}, // "offset" / "keyset"
	)
)

// RegisterSearchMetrics registers the search pipeline metrics with the
// default registry. Called once from the composition root (no init()).
func RegisterSearchMetrics() {
	prometheus.MustRegister(
		SearchRequestsTotal,
		SearchRequestDuration,
		SlowQueriesTotal,
		CacheTotal,
		CacheEvictionsTotal,
		PageFetchesTotal,
	)
}
