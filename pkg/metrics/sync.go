package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records durations and outcomes for sync runs and queue items.
type SyncMetrics struct {
	runDuration *prometheus.HistogramVec
	runSuccess  *prometheus.CounterVec
	runFailure  *prometheus.CounterVec
	queueItems  *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_run_duration_seconds",
		Help:    "Duration of per-store sync runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform"})
	runSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_run_success",
		Help: "Successful per-store sync runs.",
	}, []string{"platform"})
	runFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_run_failure",
		Help: "Failed per-store sync runs.",
	}, []string{"platform"})
	queueItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_queue_items",
		Help: "Processed sync queue items by type and outcome.",
	}, []string{"sync_type", "outcome"})
	reg.MustRegister(runDuration, runSuccess, runFailure, queueItems)
	return &SyncMetrics{
		runDuration: runDuration,
		runSuccess:  runSuccess,
		runFailure:  runFailure,
		queueItems:  queueItems,
	}
}

// ObserveRunDuration records the duration of one store's sync run.
func (m *SyncMetrics) ObserveRunDuration(platform string, duration time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.WithLabelValues(normalizeLabel(platform)).Observe(duration.Seconds())
}

// IncRunSuccess increments the success counter for the platform.
func (m *SyncMetrics) IncRunSuccess(platform string) {
	if m == nil || m.runSuccess == nil {
		return
	}
	m.runSuccess.WithLabelValues(normalizeLabel(platform)).Inc()
}

// IncRunFailure increments the failure counter for the platform.
func (m *SyncMetrics) IncRunFailure(platform string) {
	if m == nil || m.runFailure == nil {
		return
	}
	m.runFailure.WithLabelValues(normalizeLabel(platform)).Inc()
}

// IncQueueItem counts one processed queue item outcome
// (success, retry, failed, rejected).
func (m *SyncMetrics) IncQueueItem(syncType, outcome string) {
	if m == nil || m.queueItems == nil {
		return
	}
	m.queueItems.WithLabelValues(normalizeLabel(syncType), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
