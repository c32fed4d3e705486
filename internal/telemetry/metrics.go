// Package telemetry owns the Prometheus registry of the service.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "researcher"

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
)

// Metrics groups the collectors recorded by the agent service. A nil
// *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	ingestBatches *prometheus.CounterVec
	ingestTokens  *prometheus.CounterVec
	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ingestBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_batches_total",
			Help:      "Knowledge batches processed, by scope and outcome.",
		}, []string{"scope", "outcome"}),
		ingestTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_tokens_total",
			Help:      "Tokens committed to agent knowledge, by scope.",
		}, []string{"scope"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Research queries answered, by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Time spent answering a research query.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
	}
	reg.MustRegister(
		m.ingestBatches, m.ingestTokens, m.queries, m.queryDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) IngestBatch(scope, outcome string, tokens int) {
	if m == nil {
		return
	}
	m.ingestBatches.WithLabelValues(scope, outcome).Inc()
	if outcome == OutcomeOK && tokens > 0 {
		m.ingestTokens.WithLabelValues(scope).Add(float64(tokens))
	}
}

func (m *Metrics) Query(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.queryDuration.Observe(elapsed.Seconds())
	}
}
