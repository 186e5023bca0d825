// Package metrics provides Prometheus metrics for the ERP core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters the engine updates. A nil *Metrics is valid and records nothing.
type Metrics struct {
	TransitionsTotal      *prometheus.CounterVec
	PlaybooksAppliedTotal *prometheus.CounterVec
	VersionVerdictsTotal  *prometheus.CounterVec
	TimeEntriesTotal      *prometheus.CounterVec
	TrackedMinutesTotal   prometheus.Counter
	ActiveTimers          prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_transitions_total",
				Help: "Status transition attempts by entity type and result.",
			},
			[]string{"entity_type", "result"},
		),
		PlaybooksAppliedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_playbooks_applied_total",
				Help: "Playbooks applied to projects.",
			},
			[]string{"playbook"},
		),
		VersionVerdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_version_verdicts_total",
				Help: "Deliverable version verdicts by outcome.",
			},
			[]string{"verdict"},
		),
		TimeEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_time_entries_total",
				Help: "Time entries recorded by source.",
			},
			[]string{"source"},
		),
		TrackedMinutesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "erp_tracked_minutes_total",
				Help: "Minutes recorded across all time entries.",
			},
		),
		ActiveTimers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "erp_active_timers",
				Help: "Timers currently running.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.TransitionsTotal)
	reg.MustRegister(m.PlaybooksAppliedTotal)
	reg.MustRegister(m.VersionVerdictsTotal)
	reg.MustRegister(m.TimeEntriesTotal)
	reg.MustRegister(m.TrackedMinutesTotal)
	reg.MustRegister(m.ActiveTimers)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordTransition(entityType, result string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(entityType, result).Inc()
}

func (m *Metrics) RecordPlaybook(key string) {
	if m == nil {
		return
	}
	m.PlaybooksAppliedTotal.WithLabelValues(key).Inc()
}

func (m *Metrics) RecordVerdict(verdict string) {
	if m == nil {
		return
	}
	m.VersionVerdictsTotal.WithLabelValues(verdict).Inc()
}

// RecordEntry counts a new time entry and its minutes.
func (m *Metrics) RecordEntry(source string, minutes int) {
	if m == nil {
		return
	}
	m.TimeEntriesTotal.WithLabelValues(source).Inc()
	m.TrackedMinutesTotal.Add(float64(minutes))
}

// SetActiveTimers sets the running timer count.
func (m *Metrics) SetActiveTimers(count int) {
	if m == nil {
		return
	}
	m.ActiveTimers.Set(float64(count))
}
