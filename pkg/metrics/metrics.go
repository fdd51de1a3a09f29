package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// SLA sweep metrics
	SweepDuration prometheus.Histogram
	CasesWarned   prometheus.Counter
	CasesBreached prometheus.Counter

	// Escalation metrics
	EscalationsCreated *prometheus.CounterVec

	// Notification queue metrics
	NotificationsEnqueued   *prometheus.CounterVec
	NotificationsSuppressed prometheus.Counter
	NotificationsSent       prometheus.Counter
	NotificationsFailed     prometheus.Counter
	DrainDuration           prometheus.Histogram

	// Sequence generator metrics
	SequencesIssued *prometheus.CounterVec

	// Scheduler metrics
	TaskRuns *prometheus.CounterVec

	// Rollup gauges
	ActiveCasesByState *prometheus.GaugeVec
	BreachedCases      prometheus.Gauge
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sla_sweep_duration_seconds",
			Help:      "Time spent on one SLA sweep",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		CasesWarned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_cases_warned_total",
			Help:      "Total number of SLA warning notifications raised",
		}),
		CasesBreached: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_cases_breached_total",
			Help:      "Total number of cases flipped to breached",
		}),
		EscalationsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_created_total",
			Help:      "Total number of escalations created",
		}, []string{"target_role"}),
		NotificationsEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_enqueued_total",
			Help:      "Total number of notifications enqueued",
		}, []string{"trigger_event"}),
		NotificationsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_suppressed_total",
			Help:      "Total number of duplicate notifications suppressed",
		}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of notifications delivered",
		}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total number of notifications marked failed",
		}),
		DrainDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_drain_duration_seconds",
			Help:      "Time spent on one queue drain pass",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		SequencesIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_sequences_issued_total",
			Help:      "Total number of document numbers issued",
		}, []string{"document_type"}),
		TaskRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_task_runs_total",
			Help:      "Total number of scheduler task runs",
		}, []string{"task", "status"}),
		ActiveCasesByState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_cases",
			Help:      "Active cases per pipeline state",
		}, []string{"state"}),
		BreachedCases: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breached_cases",
			Help:      "Active cases currently in SLA breach",
		}),
	}
}
