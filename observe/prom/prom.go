// Package prom provides a prometheus-backed Observer for the coop executor.
package prom

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NetPo4ki/go-coop/coop"
)

// Metrics implements coop.Observer with prometheus collectors.
type Metrics struct {
	submitted prometheus.Counter
	started   prometheus.Counter
	suspended prometheus.Counter
	finished  *prometheus.CounterVec
	panics    prometheus.Counter
	active    prometheus.Gauge
	activeDur prometheus.Histogram
	shutdowns *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coop", Subsystem: "executor",
			Name: "tasks_submitted_total", Help: "Tasks accepted by Submit.",
		}),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coop", Subsystem: "executor",
			Name: "task_dispatches_total", Help: "Task dispatches (polls).",
		}),
		suspended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coop", Subsystem: "executor",
			Name: "task_suspensions_total", Help: "Task suspensions on a pending condition.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coop", Subsystem: "executor",
			Name: "tasks_finished_total", Help: "Tasks that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coop", Subsystem: "executor",
			Name: "task_panics_total", Help: "Polls that panicked.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coop", Subsystem: "executor",
			Name: "tasks_active", Help: "Live tasks (submitted and not yet terminal).",
		}),
		activeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "coop", Subsystem: "executor",
			Name:    "task_active_seconds",
			Help:    "Total time a task spent inside polls.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		shutdowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coop", Subsystem: "executor",
			Name: "shutdowns_total", Help: "Executor shutdowns, by mode.",
		}, []string{"mode"}),
	}
	reg.MustRegister(m.submitted, m.started, m.suspended, m.finished, m.panics, m.active, m.activeDur, m.shutdowns)
	return m
}

// TaskSubmitted records an accepted task.
func (m *Metrics) TaskSubmitted(uint64) {
	m.submitted.Inc()
	m.active.Inc()
}

// TaskStarted records a dispatch.
func (m *Metrics) TaskStarted(uint64) { m.started.Inc() }

// TaskSuspended records a suspension.
func (m *Metrics) TaskSuspended(uint64) { m.suspended.Inc() }

// TaskFinished records a terminal outcome.
func (m *Metrics) TaskFinished(_ uint64, active time.Duration, err error, panicked bool) {
	m.active.Dec()
	m.activeDur.Observe(active.Seconds())
	outcome := "completed"
	switch {
	case errors.Is(err, coop.ErrCancelled):
		outcome = "cancelled"
	case err != nil:
		outcome = "error"
	}
	m.finished.WithLabelValues(outcome).Inc()
	if panicked {
		m.panics.Inc()
	}
}

// ExecutorShutdown records a shutdown.
func (m *Metrics) ExecutorShutdown(graceful bool) {
	mode := "graceful"
	if !graceful {
		mode = "immediate"
	}
	m.shutdowns.WithLabelValues(mode).Inc()
}
