// Package telemetry wires Prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aura"

// MetricsServiceName is the AppContext service key of the *Metrics.
const MetricsServiceName = "telemetry.metrics"

// Turn and compaction outcomes used as label values.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeUpdated  = "updated"
	OutcomeNoChange = "no_change"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Turns           *prometheus.CounterVec
	Compactions     *prometheus.CounterVec
	GroundingChunks prometheus.Histogram
	PromptChars     prometheus.Histogram
	ClampedTurns    prometheus.Counter
	ModelLatency    *prometheus.HistogramVec
	HTTPRequests    *prometheus.CounterVec
}

// NewMetrics registers the instruments on a fresh registry that also
// carries the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Chat turns by outcome.",
		}, []string{"outcome"}),
		Compactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compactions_total",
			Help:      "Memory compaction attempts by outcome.",
		}, []string{"outcome"}),
		GroundingChunks: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grounding_chunks",
			Help:      "Chunks produced per grounded document; 0 for direct injection.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		PromptChars: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prompt_chars",
			Help:      "Characters sent to the model per chat turn.",
			Buckets:   prometheus.ExponentialBuckets(500, 2, 8),
		}),
		ClampedTurns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clamped_turns_total",
			Help:      "Turns whose context had to be clamped to the character budget.",
		}),
		ModelLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_seconds",
			Help:      "Model call latency by provider role.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"role"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
	}
}

// Registry returns the registry holding the instruments.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTurn counts a finished chat turn.
func (m *Metrics) ObserveTurn(err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.Turns.WithLabelValues(outcome).Inc()
}

// ObserveCompaction counts a compaction attempt.
func (m *Metrics) ObserveCompaction(updated bool) {
	if m == nil {
		return
	}
	outcome := OutcomeNoChange
	if updated {
		outcome = OutcomeUpdated
	}
	m.Compactions.WithLabelValues(outcome).Inc()
}

// ObserveGrounding records how many chunks a document produced.
func (m *Metrics) ObserveGrounding(chunks int) {
	if m == nil {
		return
	}
	m.GroundingChunks.Observe(float64(chunks))
}

// ObservePrompt records the size of an assembled prompt.
func (m *Metrics) ObservePrompt(chars int, clamped bool) {
	if m == nil {
		return
	}
	m.PromptChars.Observe(float64(chars))
	if clamped {
		m.ClampedTurns.Inc()
	}
}

// ObserveModelCall records the latency of a model call.
func (m *Metrics) ObserveModelCall(role string, d time.Duration) {
	if m == nil {
		return
	}
	m.ModelLatency.WithLabelValues(role).Observe(d.Seconds())
}

// ObserveHTTP counts a served HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
