// Package metrics instruments the pipeline with Prometheus counters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SessionsStarted prometheus.Counter
	SessionOutcomes *prometheus.CounterVec
	Clarifications  prometheus.Counter
	Findings        *prometheus.CounterVec

	OperationAttempts *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	ExtractionRequests *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
}

// New creates and registers the metrics. A nil registerer uses the
// process-wide default, which is what production wants; tests pass
// their own registry so parallel packages do not collide.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	const namespace = "cloudwright"

	return &Metrics{
		SessionsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_started_total",
				Help:      "Total number of operation sessions opened",
			},
		),
		SessionOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_outcomes_total",
				Help:      "Total number of sessions reaching a terminal state",
			},
			[]string{"outcome"},
		),
		Clarifications: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "clarification_requests_total",
				Help:      "Total number of times the pipeline asked the requester for missing parameters",
			},
		),
		Findings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_findings_total",
				Help:      "Total number of validation findings reported",
			},
			[]string{"severity"},
		),
		OperationAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_attempts_total",
				Help:      "Total provider API attempts by failure class, ok on success",
			},
			[]string{"service", "operation", "class"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "End-to-end execution time of confirmed operations",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"service", "operation"},
		),
		ExtractionRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_requests_total",
				Help:      "Total LLM extraction calls",
			},
			[]string{"model", "status"},
		),
		ExtractionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extraction_duration_seconds",
				Help:      "Latency of LLM extraction calls",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
	}
}

// RecordSessionStart counts a newly opened session.
func (m *Metrics) RecordSessionStart() {
	m.SessionsStarted.Inc()
}

// RecordOutcome counts a session reaching a terminal state.
func (m *Metrics) RecordOutcome(outcome string) {
	m.SessionOutcomes.WithLabelValues(outcome).Inc()
}

// RecordClarification counts one clarification round trip.
func (m *Metrics) RecordClarification() {
	m.Clarifications.Inc()
}

// RecordFinding counts one validation finding.
func (m *Metrics) RecordFinding(severity string) {
	m.Findings.WithLabelValues(severity).Inc()
}

// RecordAttempt matches the engine's attempt callback signature, so it
// can be wired in directly.
func (m *Metrics) RecordAttempt(service, operation, class string) {
	m.OperationAttempts.WithLabelValues(service, operation, class).Inc()
}

// ObserveOperation records the wall time of one executed operation.
func (m *Metrics) ObserveOperation(service, operation string, d time.Duration) {
	m.OperationDuration.WithLabelValues(service, operation).Observe(d.Seconds())
}

// RecordExtraction records one extraction call and its latency.
func (m *Metrics) RecordExtraction(model, status string, d time.Duration) {
	m.ExtractionRequests.WithLabelValues(model, status).Inc()
	m.ExtractionDuration.Observe(d.Seconds())
}
