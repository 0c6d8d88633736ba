package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	// Outcomes of background remote propagation per mutation kind.
	SyncPropagationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_propagation_count",
			Help: "Total remote propagation attempts by operation and outcome",
		},
		[]string{"operation", "outcome"}, // outcome: success, failed, skipped_auth
	)

	SnapshotApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_snapshot_applied_count",
			Help: "Remote snapshots merged into the local store",
		},
		[]string{"outcome"},
	)

	RemindersPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminders_published_count",
			Help: "Reminder events published to the queue",
		},
	)

	PushSendCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_send_count",
			Help: "Push notification deliveries by outcome",
		},
		[]string{"outcome"}, // outcome: success, failed, unregistered
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func RecordSyncPropagation(operation, outcome string) {
	SyncPropagationCount.WithLabelValues(operation, outcome).Inc()
}

func RecordSnapshotApplied(outcome string) {
	SnapshotApplied.WithLabelValues(outcome).Inc()
}

func RecordPushSend(outcome string) {
	PushSendCount.WithLabelValues(outcome).Inc()
}
