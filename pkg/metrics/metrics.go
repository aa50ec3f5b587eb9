// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	ScheduleTransitions *prometheus.CounterVec
	Assignments         *prometheus.CounterVec
	CodeChecks          *prometheus.CounterVec
	Donations           *prometheus.CounterVec
	Notifications       *prometheus.CounterVec
	StaleSwept          prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ScheduleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kindnest",
			Name:      "schedule_transitions_total",
			Help:      "Schedule status changes by target status.",
		}, []string{"to"}),
		Assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kindnest",
			Name:      "schedule_assignments_total",
			Help:      "Volunteer assignment attempts by outcome.",
		}, []string{"outcome"}),
		CodeChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kindnest",
			Name:      "otp_checks_total",
			Help:      "One-time code checks by outcome.",
		}, []string{"outcome"}),
		Donations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kindnest",
			Name:      "donations_total",
			Help:      "Donation submissions by type and outcome.",
		}, []string{"type", "outcome"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kindnest",
			Name:      "notifications_total",
			Help:      "Notification deliveries by event and outcome.",
		}, []string{"event", "outcome"}),
		StaleSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kindnest",
			Name:      "stale_schedules_swept_total",
			Help:      "Pending schedules closed by the stale sweep.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ScheduleTransitions,
		m.Assignments,
		m.CodeChecks,
		m.Donations,
		m.Notifications,
		m.StaleSwept,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
