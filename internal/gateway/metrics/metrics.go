package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedRequestsTotal tracks feed requests by feed and outcome
	FeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formgate_feed_requests_total",
			Help: "Total number of feed requests served",
		},
		[]string{"feed", "outcome"},
	)

	// FeedFetchLatency tracks upstream fetch latency per feed
	FeedFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "formgate_feed_fetch_latency_seconds",
			Help:    "Upstream fetch latency in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"feed"},
	)

	// FeedCacheHits tracks cache hits per feed
	FeedCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formgate_feed_cache_hits_total",
			Help: "Total number of feed responses served from cache",
		},
		[]string{"feed"},
	)

	// FeedCacheMisses tracks cache misses per feed
	FeedCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formgate_feed_cache_misses_total",
			Help: "Total number of feed cache misses",
		},
		[]string{"feed"},
	)

	// FilesAdmittedTotal tracks admitted upload candidates
	FilesAdmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formgate_files_admitted_total",
			Help: "Total number of files admitted into upload sessions",
		},
	)

	// FilesRejectedTotal tracks rejected upload candidates by reason
	FilesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formgate_files_rejected_total",
			Help: "Total number of upload candidates rejected",
		},
		[]string{"reason"},
	)

	// SessionsCreatedTotal tracks created upload sessions
	SessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formgate_sessions_created_total",
			Help: "Total number of upload sessions created",
		},
	)

	// ActiveSessions tracks currently open upload sessions
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "formgate_active_sessions",
			Help: "Number of currently open upload sessions",
		},
	)
)
