package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrodex_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrodex_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// MediaCacheLookups counts media cache lookups by outcome (hit|negative|miss).
	MediaCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrodex_media_cache_lookups_total",
			Help: "Media cache lookups grouped by outcome",
		},
		[]string{"outcome"},
	)

	// MediaUpstreamFetches counts upstream media provider calls by result (found|empty).
	MediaUpstreamFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrodex_media_upstream_fetches_total",
			Help: "Upstream media provider fetch attempts",
		},
		[]string{"result"},
	)

	// MediaCachePurged tracks rows removed by cache maintenance passes.
	MediaCachePurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retrodex_media_cache_purged_total",
			Help: "Expired media cache rows removed by maintenance",
		},
	)
)
