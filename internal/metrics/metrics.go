package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the gateway.
type Metrics struct {
	TurnsTotal    *prometheus.CounterVec
	TurnDuration  *prometheus.HistogramVec
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all gateway metrics on the default registry.
// Call it once per process.
func New() *Metrics {
	return &Metrics{
		TurnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voicegate_turns_total",
			Help: "Total number of message turns handled, by kind and outcome",
		}, []string{"kind", "outcome"}),
		TurnDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicegate_turn_duration_seconds",
			Help:    "End-to-end duration of one message turn",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7 minutes
		}, []string{"kind"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicegate_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~3.5 minutes
		}, []string{"stage"}),
		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voicegate_stage_failures_total",
			Help: "Total number of pipeline stage failures, by stage",
		}, []string{"stage"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voicegate_http_requests_total",
			Help: "Total number of HTTP requests to the listener",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicegate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests to the listener",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// RecordTurn records one handled message turn.
func (m *Metrics) RecordTurn(kind, outcome string, durationSeconds float64) {
	m.TurnsTotal.WithLabelValues(kind, outcome).Inc()
	m.TurnDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordStageDuration records how long one pipeline stage took.
func (m *Metrics) RecordStageDuration(stage string, durationSeconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordStageFailure records a pipeline stage failure.
func (m *Metrics) RecordStageFailure(stage string) {
	m.StageFailures.WithLabelValues(stage).Inc()
}

// RecordHTTPRequest records one request handled by the listener.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}
