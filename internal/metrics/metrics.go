// Package metrics holds the Prometheus registry for run/job metrics
// (SPEC_FULL.md §4.0/§5), grounded in the teacher's
// internal/interfaces/http/metrics.go MetricsRegistry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every metric the scheduler and pipeline stages publish.
type Registry struct {
	RunDuration *prometheus.HistogramVec
	RunsTotal   *prometheus.CounterVec

	SignalsTotal *prometheus.CounterVec

	LifecycleTransitions *prometheus.CounterVec

	DispatchSent   *prometheus.CounterVec
	DispatchFailed *prometheus.CounterVec

	JobSkippedOverlap *prometheus.CounterVec
}

// NewRegistry constructs a Registry and registers every metric against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalgraph_run_duration_seconds",
				Help:    "Duration of a scheduled job run in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"job", "status"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalgraph_runs_total",
				Help: "Total number of scheduled job runs by job and status",
			},
			[]string{"job", "status"},
		),
		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalgraph_signals_total",
				Help: "Total number of signal candidates emitted by type and severity",
			},
			[]string{"type", "severity"},
		),
		LifecycleTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalgraph_lifecycle_transitions_total",
				Help: "Total number of signal lifecycle transitions by from/to state",
			},
			[]string{"from", "to"},
		),
		DispatchSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalgraph_dispatch_sent_total",
				Help: "Total number of signals successfully dispatched by channel",
			},
			[]string{"channel"},
		),
		DispatchFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalgraph_dispatch_failed_total",
				Help: "Total number of signal dispatch failures by channel",
			},
			[]string{"channel"},
		),
		JobSkippedOverlap: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalgraph_job_skipped_overlap_total",
				Help: "Total number of ticks skipped because the previous run on the same lock key was still in progress",
			},
			[]string{"job"},
		),
	}
	reg.MustRegister(
		m.RunDuration, m.RunsTotal, m.SignalsTotal, m.LifecycleTransitions,
		m.DispatchSent, m.DispatchFailed, m.JobSkippedOverlap,
	)
	return m
}
