// Package metrics holds the Prometheus collectors for the state container
// and store writes. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitepay"

// Write results
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultNoSession = "no_session"
)

type Metrics struct {
	registry           *prometheus.Registry
	snapshots          *prometheus.CounterVec
	subscriptionErrors *prometheus.CounterVec
	writes             *prometheus.CounterVec
	activeSubs         prometheus.Gauge
	exports            *prometheus.CounterVec
	securityEvents     *prometheus.CounterVec
}

// New registers collectors on a fresh registry, plus Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Collection snapshots applied to the state container.",
		}, []string{"collection"}),
		subscriptionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_errors_total",
			Help:      "Subscriptions ended by a store error.",
		}, []string{"collection"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Store writes by operation and result.",
		}, []string{"collection", "op", "result"}),
		activeSubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Open collection subscriptions.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_exports_total",
			Help:      "Ledger exports by result.",
		}, []string{"result"}),
		securityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "security_events_total",
			Help:      "Rate limited and suspicious HTTP requests.",
		}, []string{"event"}),
	}
	reg.MustRegister(
		m.snapshots,
		m.subscriptionErrors,
		m.writes,
		m.activeSubs,
		m.exports,
		m.securityEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Snapshot(collection string) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(collection).Inc()
}

func (m *Metrics) SubscriptionError(collection string) {
	if m == nil {
		return
	}
	m.subscriptionErrors.WithLabelValues(collection).Inc()
}

func (m *Metrics) Write(collection, op, result string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(collection, op, result).Inc()
}

func (m *Metrics) SubscriptionsOpened(n int) {
	if m == nil {
		return
	}
	m.activeSubs.Add(float64(n))
}

func (m *Metrics) SubscriptionsClosed(n int) {
	if m == nil {
		return
	}
	m.activeSubs.Sub(float64(n))
}

func (m *Metrics) Export(result string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(result).Inc()
}

// Security events
const (
	EventRateLimited = "rate_limited"
	EventSuspicious  = "suspicious"
)

func (m *Metrics) SecurityEvent(event string) {
	if m == nil {
		return
	}
	m.securityEvents.WithLabelValues(event).Inc()
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
