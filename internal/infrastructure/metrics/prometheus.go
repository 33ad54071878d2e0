// Package metrics exports relay metrics in Prometheus format.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for summary requests.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalidInput = "invalid_input"
	OutcomeBackendError = "backend_error"
	OutcomeTimeout      = "timeout"
	OutcomeTransport    = "transport_error"
	OutcomeEmpty        = "empty"
	OutcomeUnknown      = "unknown"
)

// Module label values that never come from a caller.
const (
	// ModuleInvalid labels requests rejected before a module was accepted.
	ModuleInvalid = "invalid"
	// ModuleOther absorbs modules seen after the label limit was reached.
	ModuleOther = "other"
)

const defaultMaxModuleLabels = 32

// Recorder is implemented by the exporter and by Nop.
type Recorder interface {
	ObserveRequest(module, outcome string)
	ObserveGeneration(module string, elapsed time.Duration)
	ObserveMalformedLine(provider string)
}

// PrometheusExporter collects request, latency and stream health metrics.
type PrometheusExporter struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	generation     *prometheus.HistogramVec
	malformedLines *prometheus.CounterVec

	modules *labelLimiter
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for the generation latency histogram (in seconds)
	LatencyBuckets []float64

	// Register Go runtime and process collectors
	RuntimeCollectors bool

	// Distinct module label values kept before falling back to ModuleOther
	MaxModuleLabels int
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets:    []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		RuntimeCollectors: true,
		MaxModuleLabels:   defaultMaxModuleLabels,
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.MaxModuleLabels <= 0 {
		cfg.MaxModuleLabels = defaultMaxModuleLabels
	}

	e := &PrometheusExporter{
		registry: registry,
		modules:  newLabelLimiter(cfg.MaxModuleLabels),
	}

	e.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "summary_relay",
			Name:      "requests_total",
			Help:      "Total number of summary requests by outcome",
		},
		[]string{"module", "outcome"},
	)

	e.generation = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "summary_relay",
			Name:      "generation_seconds",
			Help:      "Backend call plus stream consumption time in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"module"},
	)

	e.malformedLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "summary_relay",
			Name:      "stream_malformed_lines_total",
			Help:      "Backend stream lines skipped because they were not valid JSON",
		},
		[]string{"provider"},
	)

	registry.MustRegister(e.requests, e.generation, e.malformedLines)
	if cfg.RuntimeCollectors {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return e
}

func (e *PrometheusExporter) ObserveRequest(module, outcome string) {
	e.requests.WithLabelValues(e.modules.label(module), outcome).Inc()
}

func (e *PrometheusExporter) ObserveGeneration(module string, elapsed time.Duration) {
	e.generation.WithLabelValues(e.modules.label(module)).Observe(elapsed.Seconds())
}

func (e *PrometheusExporter) ObserveMalformedLine(provider string) {
	e.malformedLines.WithLabelValues(provider).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// Registry exposes the underlying registry.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}

// labelLimiter keeps the first max distinct values and maps the rest to
// ModuleOther, so callers cannot grow the number of series without bound.
type labelLimiter struct {
	mu   sync.Mutex
	max  int
	seen map[string]struct{}
}

func newLabelLimiter(limit int) *labelLimiter {
	return &labelLimiter{
		max:  limit,
		seen: make(map[string]struct{}),
	}
}

func (l *labelLimiter) label(value string) string {
	if value == ModuleInvalid || value == ModuleOther {
		return value
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[value]; ok {
		return value
	}
	if len(l.seen) >= l.max {
		return ModuleOther
	}
	l.seen[value] = struct{}{}
	return value
}

// Nop discards all observations.
type Nop struct{}

func (Nop) ObserveRequest(string, string) {}

func (Nop) ObserveGeneration(string, time.Duration) {}

func (Nop) ObserveMalformedLine(string) {}
