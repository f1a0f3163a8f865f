// Package metrics provides Prometheus metrics for the scoring service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for meridian.
type Metrics struct {
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	CompositeScore     *prometheus.GaugeVec
	StaleWorkstreams   prometheus.Gauge
	PublishErrorsTotal prometheus.Counter
	RequestsTotal      *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_evaluations_total",
				Help: "Total score evaluations by trigger and outcome.",
			},
			[]string{"trigger", "outcome"},
		),
		EvaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "meridian_evaluation_duration_seconds",
				Help:    "Time to load, score and persist one workstream.",
				Buckets: prometheus.DefBuckets,
			},
		),
		CompositeScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meridian_composite_score",
				Help: "Latest composite score per workstream.",
			},
			[]string{"workstream_id", "rag_status"},
		),
		StaleWorkstreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "meridian_stale_workstreams",
				Help: "Workstreams flagged stale by the last sweep.",
			},
		),
		PublishErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "meridian_publish_errors_total",
				Help: "Snapshots that could not be published.",
			},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_http_requests_total",
				Help: "HTTP requests by method and status code.",
			},
			[]string{"method", "code"},
		),
		registry: reg,
	}

	reg.MustRegister(m.EvaluationsTotal)
	reg.MustRegister(m.EvaluationDuration)
	reg.MustRegister(m.CompositeScore)
	reg.MustRegister(m.StaleWorkstreams)
	reg.MustRegister(m.PublishErrorsTotal)
	reg.MustRegister(m.RequestsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEvaluation counts one evaluation. A nil receiver is a no-op so callers
// without metrics need no guard.
func (m *Metrics) RecordEvaluation(trigger, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(trigger, outcome).Inc()
	if outcome == "ok" {
		m.EvaluationDuration.Observe(seconds)
	}
}

// SetScore replaces the gauge of a workstream so only its current status is exported.
func (m *Metrics) SetScore(workstreamID, status string, composite float64) {
	if m == nil {
		return
	}
	m.CompositeScore.DeletePartialMatch(prometheus.Labels{"workstream_id": workstreamID})
	m.CompositeScore.WithLabelValues(workstreamID, status).Set(composite)
}

func (m *Metrics) SetStale(count int) {
	if m == nil {
		return
	}
	m.StaleWorkstreams.Set(float64(count))
}

func (m *Metrics) RecordPublishError() {
	if m == nil {
		return
	}
	m.PublishErrorsTotal.Inc()
}

func (m *Metrics) RecordRequest(method, code string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, code).Inc()
}
