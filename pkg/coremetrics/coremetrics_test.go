package coremetrics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSnapshotIncludesRegisteredMetrics(t *testing.T) {
	TasksByStatus.WithLabelValues("pending").Set(3)
	NotificationsEmittedTotal.WithLabelValues("assignment").Inc()

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf))

	out := buf.String()
	assert.Contains(t, out, "taskctl_tasks_total")
	assert.Contains(t, out, "taskctl_notifications_emitted_total")
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "test",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDuration(histogram)

	var out bytes.Buffer
	reg := prometheus.NewRegistry()
	reg.MustRegister(histogram)
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, uint64(1), families[0].GetMetric()[0].GetHistogram().GetSampleCount())
	_ = out
}

func TestTimerDurationIsMonotonic(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Duration(), 5*time.Millisecond)
}

func TestRecordComponentAndHealth(t *testing.T) {
	ResetForTest()
	RecordComponent("storage", true, "")
	RecordComponent("migrations", true, "")

	report := Health()
	assert.Equal(t, "healthy", report.Status)
	assert.Len(t, report.Components, 2)
}

func TestHealthReflectsUnhealthyComponent(t *testing.T) {
	ResetForTest()
	RecordComponent("storage", true, "")
	RecordComponent("migrations", false, "pending migration 0003")

	report := Health()
	assert.Equal(t, "unhealthy", report.Status)
	assert.True(t, strings.Contains(report.Components["migrations"].Message, "0003"))
}
