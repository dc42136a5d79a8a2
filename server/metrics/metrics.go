package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates Prometheus metrics for the server.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec

	// Generation pipeline
	GenerationDuration *prometheus.HistogramVec
	QuestionsGenerated *prometheus.CounterVec
	LinesSkipped       *prometheus.CounterVec
	PromptTokens       *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quiz_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quiz_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quiz_generation_duration_seconds",
				Help:    "Time spent waiting on the model by category",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"category"},
		),
		QuestionsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_questions_generated_total",
				Help: "Total number of question records returned by category",
			},
			[]string{"category"},
		),
		LinesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_lines_skipped_total",
				Help: "Total number of malformed reply lines dropped by category",
			},
			[]string{"category"},
		),
		PromptTokens: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quiz_prompt_tokens",
				Help:    "Estimated prompt size in tokens by category",
				Buckets: prometheus.ExponentialBuckets(64, 2, 10),
			},
			[]string{"category"},
		),
	}

	// Register default Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m.RequestsTotal.WithLabelValues("/health", "200").Add(0)
	m.RequestsTotal.WithLabelValues("/metrics", "200").Add(0)
	m.ActiveRequests.WithLabelValues("queued").Add(0)
	m.ActiveRequests.WithLabelValues("processing").Add(0)
	m.ActiveRequests.WithLabelValues("in_flight").Add(0)

	return m
}

// Registry exposes the underlying registry so other components (circuit
// breakers, providers) can register their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false, // Disable OpenMetrics format to avoid escaping=values
	})
}
