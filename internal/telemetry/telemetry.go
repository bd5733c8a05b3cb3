// Package telemetry defines the service's Prometheus metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument the service records. All metrics live in a
// dedicated registry so tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	ChatRequests       *prometheus.CounterVec
	RateLimitRejected  prometheus.Counter
	LLMRequestDuration *prometheus.HistogramVec
	RetrievalSearches  *prometheus.CounterVec
}

// New builds a metrics set backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportd",
			Name:      "chat_requests_total",
			Help:      "Chat requests by mode and outcome.",
		}, []string{"mode", "outcome"}),
		RateLimitRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "supportd",
			Name:      "rate_limit_rejected_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "supportd",
			Name:      "llm_request_duration_seconds",
			Help:      "Latency of upstream LLM calls by backend.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"backend"}),
		RetrievalSearches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportd",
			Name:      "retrieval_searches_total",
			Help:      "Retrieval searches by path (vector or keyword).",
		}, []string{"path"}),
	}
}

// ObserveLLMRequest records one upstream call.
func (m *Metrics) ObserveLLMRequest(backend string, d time.Duration) {
	m.LLMRequestDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
