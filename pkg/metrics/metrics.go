package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PushDeliveries records dispatcher outcomes (sent|suppressed|gone|failed).
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simplenotify_push_deliveries_total",
			Help: "Total number of push notification dispatch attempts by outcome",
		},
		[]string{"result"},
	)

	// PreferenceCacheLookups counts merged preference lookups by result (hit|miss|error).
	PreferenceCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simplenotify_preference_cache_lookups_total",
			Help: "Total number of merged preference cache lookups",
		},
		[]string{"result"},
	)

	// SubscriptionChanges counts subscription lifecycle writes (created|updated|deleted).
	SubscriptionChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simplenotify_subscription_changes_total",
			Help: "Total number of push subscription writes",
		},
		[]string{"action"},
	)

	// PushLatency measures the blocking call to the push service.
	PushLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simplenotify_push_latency_seconds",
			Help:    "Latency of push service delivery calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simplenotify_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
