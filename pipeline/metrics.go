package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_refreshes_total",
			Help: "Total number of refresh runs",
		},
		[]string{"trigger", "outcome"},
	)

	refreshDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "focus_refresh_duration_seconds",
			Help:    "Refresh run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	skippedTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "focus_skipped_ticks_total",
			Help: "Periodic ticks skipped because a refresh was still running",
		},
	)

	oracleFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_oracle_fallbacks_total",
			Help: "Oracle calls replaced by local computation",
		},
		[]string{"operation"},
	)

	offlineQueuePushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "focus_offline_queue_pushes_total",
			Help: "Health records queued after a failed write",
		},
	)

	offlineSyncedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "focus_offline_synced_total",
			Help: "Queued health records written during sync",
		},
	)
)
