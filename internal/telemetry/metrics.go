// Package telemetry provides Prometheus metrics for chord runtimes.
//
// Each Metrics owns its registry, so two runtimes in one process never share
// counters. Metrics implements engine.Observer; pass it with
// engine.WithObserver.
package telemetry

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/roach88/chord/internal/ir"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "chord"

// Metrics collects runtime measurements.
type Metrics struct {
	// Context metrics
	contextFetches *prometheus.CounterVec
	contextErrors  *prometheus.CounterVec

	// Selector metrics
	selectorsExecuted *prometheus.CounterVec
	selectorDuration  *prometheus.HistogramVec

	// Execution metrics
	executions        *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// Option configures Metrics.
type Option func(*options)

type options struct {
	namespace string
	buckets   []float64
}

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithBuckets sets the histogram buckets, in seconds.
func WithBuckets(buckets []float64) Option {
	return func(o *options) {
		if len(buckets) > 0 {
			o.buckets = buckets
		}
	}
}

// New creates a Metrics with its own registry.
func New(opts ...Option) *Metrics {
	o := options{namespace: DefaultNamespace, buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		contextFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "context_fetches_total",
				Help:      "Context fetches by source type and cache outcome",
			},
			[]string{"source", "cache"},
		),
		contextErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "context_fetch_errors_total",
				Help:      "Failed context fetches by source type",
			},
			[]string{"source"},
		),

		selectorsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "selectors_executed_total",
				Help:      "Selectors executed by operation and outcome",
			},
			[]string{"op", "status"},
		),
		selectorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: o.namespace,
				Name:      "selector_duration_seconds",
				Help:      "Selector execution time in seconds",
				Buckets:   o.buckets,
			},
			[]string{"op"},
		),

		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "executions_total",
				Help:      "Top-level executions by kind and status",
			},
			[]string{"kind", "status"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: o.namespace,
				Name:      "execution_duration_seconds",
				Help:      "Top-level execution time in seconds",
				Buckets:   o.buckets,
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.contextFetches,
		m.contextErrors,
		m.selectorsExecuted,
		m.selectorDuration,
		m.executions,
		m.executionDuration,
	)
	return m
}

// ContextFetched implements engine.Observer.
func (m *Metrics) ContextFetched(sourceType string, cached bool, err error) {
	cache := "miss"
	if cached {
		cache = "hit"
	}
	m.contextFetches.WithLabelValues(sourceType, cache).Inc()
	if err != nil {
		m.contextErrors.WithLabelValues(sourceType).Inc()
	}
}

// SelectorExecuted implements engine.Observer.
func (m *Metrics) SelectorExecuted(op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.selectorsExecuted.WithLabelValues(op, status).Inc()
	m.selectorDuration.WithLabelValues(op).Observe(d.Seconds())
}

// Executed implements engine.Observer.
func (m *Metrics) Executed(kind ir.RunKind, status string, d time.Duration) {
	m.executions.WithLabelValues(string(kind), status).Inc()
	m.executionDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteText writes every metric family in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
