// SPDX-License-Identifier: MPL-2.0

// Package metrics holds the Prometheus collectors for dispatch, capture and
// script activity, registered on a private registry so tests and multiple
// shells in one process do not collide.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clishell"

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// UnknownCommand labels dispatches of lines that named no registered command.
const UnknownCommand = "<unknown>"

// Metrics is a set of collectors bound to one registry.
type Metrics struct {
	registry *prometheus.Registry

	dispatches     *prometheus.CounterVec
	dispatchTime   *prometheus.HistogramVec
	captures       *prometheus.CounterVec
	scripts        *prometheus.CounterVec
	environments   prometheus.Gauge
	activeSessions prometheus.Gauge
}

// New creates and registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Dispatched commands by command name and outcome.",
			},
			[]string{"command", "outcome"},
		),
		dispatchTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent executing dispatched commands.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		captures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capture_total",
				Help:      "Output captures by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		scripts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "script_runs_total",
				Help:      "Script loads by retention and outcome.",
			},
			[]string{"retained", "outcome"},
		),
		environments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retained_environments",
			Help:      "Retained script environments currently alive.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Shell sessions currently open.",
		}),
	}
	m.registry.MustRegister(m.dispatches, m.dispatchTime, m.captures, m.scripts, m.environments, m.activeSessions)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDispatch records one dispatched command. Callers pass
// UnknownCommand instead of names that did not resolve, so the label set
// stays bounded by the registry. A nil receiver is a no-op.
func (m *Metrics) ObserveDispatch(command string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if command == "" {
		command = UnknownCommand
	}
	m.dispatches.WithLabelValues(command, outcome(err)).Inc()
	m.dispatchTime.WithLabelValues(command).Observe(elapsed.Seconds())
}

// ObserveCapture records one capture redirection.
func (m *Metrics) ObserveCapture(mode string, err error) {
	if m == nil {
		return
	}
	m.captures.WithLabelValues(mode, outcome(err)).Inc()
}

// ObserveScript records one script load.
func (m *Metrics) ObserveScript(retained bool, err error) {
	if m == nil {
		return
	}
	r := "false"
	if retained {
		r = "true"
	}
	m.scripts.WithLabelValues(r, outcome(err)).Inc()
}

// AddEnvironments adjusts the retained environment gauge.
func (m *Metrics) AddEnvironments(delta int) {
	if m == nil {
		return
	}
	m.environments.Add(float64(delta))
}

// SessionOpened increments the open session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed decrements the open session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
