package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	registry *prometheus.Registry

	// Permission state machine metrics
	PermissionTransitions *prometheus.CounterVec
	PermissionRequests    *prometheus.CounterVec

	// Record metrics
	RecordSaves   *prometheus.CounterVec
	RecordDeletes *prometheus.CounterVec

	// Bridge metrics
	BridgeCalls   *prometheus.CounterVec
	BridgeLatency *prometheus.HistogramVec
}

// New creates and registers all application metrics on a private registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PermissionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_transitions_total",
			Help:      "Total number of permission status transitions",
		}, []string{"status"}),
		PermissionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_requests_total",
			Help:      "Total number of authorization requests by outcome",
		}, []string{"outcome"}),
		RecordSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_saves_total",
			Help:      "Total number of implant record save attempts",
		}, []string{"outcome"}),
		RecordDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_deletes_total",
			Help:      "Total number of implant record delete attempts",
		}, []string{"outcome"}),
		BridgeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_calls_total",
			Help:      "Total number of platform bridge calls",
		}, []string{"variant", "operation", "status"}),
		BridgeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bridge_call_duration_seconds",
			Help:      "Duration of platform bridge calls",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"variant", "operation"}),
	}

	m.registry.MustRegister(
		m.PermissionTransitions,
		m.PermissionRequests,
		m.RecordSaves,
		m.RecordDeletes,
		m.BridgeCalls,
		m.BridgeLatency,
	)

	return m
}

// Registry exposes the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePermissionTransition is nil-safe so services can run without metrics in tests.
func (m *Metrics) ObservePermissionTransition(status string) {
	if m == nil {
		return
	}
	m.PermissionTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObservePermissionRequest(outcome string) {
	if m == nil {
		return
	}
	m.PermissionRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRecordSave(outcome string) {
	if m == nil {
		return
	}
	m.RecordSaves.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRecordDelete(outcome string) {
	if m == nil {
		return
	}
	m.RecordDeletes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveBridgeCall(variant, operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.BridgeCalls.WithLabelValues(variant, operation, status).Inc()
	m.BridgeLatency.WithLabelValues(variant, operation).Observe(seconds)
}
