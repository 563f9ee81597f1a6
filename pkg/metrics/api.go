package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// APICallMetrics records metadata for outbound backend calls.
type APICallMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewAPICallMetrics registers the call metrics on the provided registerer.
func NewAPICallMetrics(reg prometheus.Registerer) *APICallMetrics {
	if reg == nil {
		return &APICallMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_call_duration_seconds",
		Help:    "Duration of backend API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_call_success",
		Help: "Successful backend API calls.",
	}, []string{"endpoint"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_call_failure",
		Help: "Failed backend API calls.",
	}, []string{"endpoint"})
	reg.MustRegister(duration, success, failure)
	return &APICallMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named endpoint.
func (m *APICallMetrics) ObserveDuration(endpoint string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(endpoint)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named endpoint.
func (m *APICallMetrics) IncSuccess(endpoint string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(endpoint)).Inc()
}

// IncFailure increments the failure counter for the named endpoint.
func (m *APICallMetrics) IncFailure(endpoint string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(endpoint)).Inc()
}

func normalizeLabel(endpoint string) string {
	if endpoint == "" {
		return "unknown"
	}
	return endpoint
}
