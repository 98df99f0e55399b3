package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics records replay cycles of the durable workflow worker.
type WorkflowMetrics struct {
	cycleDuration *prometheus.HistogramVec
	runsProcessed *prometheus.CounterVec
	cycleFailures *prometheus.CounterVec
}

// NewWorkflowMetrics registers the workflow worker metrics on the provided registerer.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return &WorkflowMetrics{}
	}
	cycleDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workflow_cycle_duration_seconds",
		Help:    "Duration of workflow poll cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"worker"})
	runsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_runs_processed",
		Help: "Workflow runs replayed to a suspend or terminal state.",
	}, []string{"worker"})
	cycleFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_cycle_failures",
		Help: "Workflow poll cycles that ended with an error.",
	}, []string{"worker"})
	reg.MustRegister(cycleDuration, runsProcessed, cycleFailures)
	return &WorkflowMetrics{
		cycleDuration: cycleDuration,
		runsProcessed: runsProcessed,
		cycleFailures: cycleFailures,
	}
}

// ObserveCycle records the duration of one poll cycle.
func (w *WorkflowMetrics) ObserveCycle(worker string, duration time.Duration) {
	if w == nil || w.cycleDuration == nil {
		return
	}
	w.cycleDuration.WithLabelValues(normalizeLabel(worker)).Observe(duration.Seconds())
}

// AddRunsProcessed increments the processed-run counter.
func (w *WorkflowMetrics) AddRunsProcessed(worker string, count int) {
	if w == nil || w.runsProcessed == nil || count <= 0 {
		return
	}
	w.runsProcessed.WithLabelValues(normalizeLabel(worker)).Add(float64(count))
}

// IncCycleFailure increments the failed-cycle counter.
func (w *WorkflowMetrics) IncCycleFailure(worker string) {
	if w == nil || w.cycleFailures == nil {
		return
	}
	w.cycleFailures.WithLabelValues(normalizeLabel(worker)).Inc()
}
