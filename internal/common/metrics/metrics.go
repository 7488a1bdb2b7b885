// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_total",
			Help: "Total number of notification dispatch attempts",
		},
		[]string{"kind", "outcome"},
	)

	ReminderRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_runs_total",
			Help: "Total number of reminder batch runs",
		},
		[]string{"outcome"},
	)

	ReminderRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "reminder_run_duration_seconds",
			Help: "Duration of reminder batch runs in seconds",
		},
	)

	ReminderDuplicatesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_duplicates_skipped_total",
			Help: "Appointments skipped because a reminder was already on record",
		},
	)
)
