// Package coremetrics exposes the orchestrator's internal counters and
// gauges as Prometheus collectors. There is no long-running server in this
// tool, so metrics are gathered and written out as a one-shot Prometheus
// text-exposition snapshot by `taskctl metrics --format prometheus` rather
// than served over HTTP.
package coremetrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/expfmt"
)

var (
	registry = prometheus.NewRegistry()

	TasksByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskctl_tasks_total",
			Help: "Current number of tasks by status",
		},
		[]string{"status"},
	)

	DependencyEdgesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskctl_dependency_edges_total",
			Help: "Current number of dependency edges in the graph",
		},
	)

	NotificationsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskctl_notifications_emitted_total",
			Help: "Total number of notifications emitted, by kind",
		},
		[]string{"kind"},
	)

	CompletionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskctl_completion_duration_seconds",
			Help:    "Time taken to run a complete() call, including cascade-unblock",
			Buckets: prometheus.DefBuckets,
		},
	)

	CriteriaValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskctl_criteria_validations_total",
			Help: "Total number of success-criteria validations, by outcome",
		},
		[]string{"outcome"}, // pass, fail, manual
	)

	FeedbackMeanQuality = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskctl_feedback_mean_quality",
			Help: "Mean feedback quality score across all tasks with feedback",
		},
	)

	FeedbackMeanTimeliness = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskctl_feedback_mean_timeliness",
			Help: "Mean feedback timeliness score across all tasks with feedback",
		},
	)

	EstimationAccuracy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskctl_estimation_accuracy",
			Help: "1 - mean(|estimated - actual| / max(estimated, actual)) across tasks with both set",
		},
	)
)

func init() {
	registry.MustRegister(
		TasksByStatus,
		DependencyEdgesTotal,
		NotificationsEmittedTotal,
		CompletionDuration,
		CriteriaValidationsTotal,
		FeedbackMeanQuality,
		FeedbackMeanTimeliness,
		EstimationAccuracy,
	)
}

// WriteSnapshot gathers the current state of every registered collector and
// writes it to w in Prometheus text-exposition format.
func WriteSnapshot(w io.Writer) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// Timer times an operation and records its duration to a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time since NewTimer to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
