package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector provides Prometheus metrics for provider calls.
// It owns a private registry so several clients can coexist in one process.
type MetricsCollector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	attemptsTotal   *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	registry        *prometheus.Registry
}

// NewCollector creates a new Prometheus metrics collector
func NewCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gptkit_requests_total",
			Help: "Total number of completion and embedding calls by operation, backend and status",
		},
		[]string{"operation", "backend", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gptkit_request_duration_seconds",
			Help:    "Duration of calls including retries, by operation and backend",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"operation", "backend"},
	)

	attemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gptkit_attempts_total",
			Help: "Total number of provider attempts by operation, backend and outcome",
		},
		[]string{"operation", "backend", "outcome"},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gptkit_errors_total",
			Help: "Total number of failed calls by operation and error type",
		},
		[]string{"operation", "error_type"},
	)

	registry.MustRegister(requestsTotal)
	registry.MustRegister(requestDuration)
	registry.MustRegister(attemptsTotal)
	registry.MustRegister(errorsTotal)

	return &MetricsCollector{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
		attemptsTotal:   attemptsTotal,
		errorsTotal:     errorsTotal,
		registry:        registry,
	}
}

// RecordRequest records the completion of a call and its total duration
func (m *MetricsCollector) RecordRequest(ctx context.Context, operation string, backend string, status string, durationMs int64) {
	m.requestsTotal.WithLabelValues(operation, backend, status).Inc()
	m.requestDuration.WithLabelValues(operation, backend).Observe(float64(durationMs) / 1000.0)
}

// RecordAttempt records one provider attempt
func (m *MetricsCollector) RecordAttempt(ctx context.Context, operation string, backend string, ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.attemptsTotal.WithLabelValues(operation, backend, outcome).Inc()
}

// RecordError records an error occurrence
func (m *MetricsCollector) RecordError(ctx context.Context, operation string, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// Registry returns the Prometheus registry for HTTP exposure
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}
