package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// WorkflowMetrics records license request transitions.
type WorkflowMetrics struct {
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewWorkflowMetrics registers the workflow metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return &WorkflowMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "licensedesk_workflow_operations_total",
		Help: "Workflow operations by operation and outcome.",
	}, []string{"op", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "licensedesk_workflow_operation_duration_seconds",
		Help:    "Duration of workflow operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	reg.MustRegister(transitions, duration)
	return &WorkflowMetrics{
		transitions: transitions,
		duration:    duration,
	}
}

// Observe records one completed operation.
func (w *WorkflowMetrics) Observe(op string, err error, elapsed time.Duration) {
	if w == nil || w.transitions == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	op = normalizeLabel(op)
	w.transitions.WithLabelValues(op, outcome).Inc()
	w.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
