// Package metrics holds the Prometheus instruments of the web front-end.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// AuthOperationsTotal counts login/logout/reset by outcome
	AuthOperationsTotal *prometheus.CounterVec
	// GuardDecisionsTotal counts route guard decisions by kind
	GuardDecisionsTotal *prometheus.CounterVec
	// UpstreamRejectionsTotal counts 401s from the remote API that ended a session
	UpstreamRejectionsTotal prometheus.Counter
}

// New creates and registers all metrics on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tailorly_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tailorly_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tailorly_auth_operations_total",
				Help: "Authentication operations by outcome",
			},
			[]string{"operation", "role", "outcome"},
		),
		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tailorly_guard_decisions_total",
				Help: "Route guard decisions by kind",
			},
			[]string{"decision"},
		),
		UpstreamRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tailorly_upstream_rejections_total",
				Help: "Sessions destroyed because the remote API rejected the credential",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthOperationsTotal,
		m.GuardDecisionsTotal,
		m.UpstreamRejectionsTotal,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AuthOperation records one auth operation. Safe on a nil receiver.
func (m *Metrics) AuthOperation(operation, role, outcome string) {
	if m == nil {
		return
	}
	m.AuthOperationsTotal.WithLabelValues(operation, role, outcome).Inc()
}

// GuardDecision records one guard decision. Safe on a nil receiver.
func (m *Metrics) GuardDecision(decision string) {
	if m == nil {
		return
	}
	m.GuardDecisionsTotal.WithLabelValues(decision).Inc()
}

// UpstreamRejection records a session ended by the remote API. Safe on a nil receiver.
func (m *Metrics) UpstreamRejection() {
	if m == nil {
		return
	}
	m.UpstreamRejectionsTotal.Inc()
}
