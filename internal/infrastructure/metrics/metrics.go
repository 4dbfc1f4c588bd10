// Package metrics provides Prometheus metrics for provider operations.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for provider calls, webhook verification and
// in-flight handshakes.
type Metrics struct {
	providerOps          *prometheus.CounterVec
	providerOpDuration   *prometheus.HistogramVec
	webhookVerifications *prometheus.CounterVec
	activeHandshakes     prometheus.Gauge
}

// New registers all collectors with the provided registry. Call once at
// startup.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		providerOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scenergy",
				Subsystem: "commerce",
				Name:      "provider_operations_total",
				Help:      "Total provider API operations by provider, operation and outcome",
			},
			[]string{"provider", "operation", "status"},
		),
		providerOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "scenergy",
				Subsystem: "commerce",
				Name:      "provider_operation_duration_seconds",
				Help:      "Provider API operation latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "operation", "status"},
		),
		webhookVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scenergy",
				Subsystem: "commerce",
				Name:      "webhook_verifications_total",
				Help:      "Inbound webhook signature verifications by provider and result",
			},
			[]string{"provider", "result"},
		),
		activeHandshakes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "scenergy",
				Subsystem: "commerce",
				Name:      "active_auth_handshakes",
				Help:      "Auth handshakes currently awaiting a callback",
			},
		),
	}

	for name, c := range map[string]prometheus.Collector{
		"providerOps":          m.providerOps,
		"providerOpDuration":   m.providerOpDuration,
		"webhookVerifications": m.webhookVerifications,
		"activeHandshakes":     m.activeHandshakes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", name, err)
		}
	}

	return m, nil
}

// RecordProviderOp counts one provider API call. status is "success" or
// "error".
func (m *Metrics) RecordProviderOp(provider, operation, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.providerOps.WithLabelValues(provider, operation, status).Inc()
	m.providerOpDuration.WithLabelValues(provider, operation, status).Observe(durationSeconds)
}

// RecordWebhookVerification counts one signature check. result is "verified"
// or "rejected".
func (m *Metrics) RecordWebhookVerification(provider, result string) {
	if m == nil {
		return
	}
	m.webhookVerifications.WithLabelValues(provider, result).Inc()
}

// HandshakeStarted bumps the in-flight handshake gauge.
func (m *Metrics) HandshakeStarted() {
	if m == nil {
		return
	}
	m.activeHandshakes.Inc()
}

// HandshakeFinished decrements the in-flight handshake gauge.
func (m *Metrics) HandshakeFinished() {
	if m == nil {
		return
	}
	m.activeHandshakes.Dec()
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
