package middleware

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/teddy"
	"github.com/vango-dev/teddy/pkg/engine"
	"github.com/vango-dev/teddy/pkg/path"
	"github.com/vango-dev/teddy/pkg/reactive"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "teddy").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for operation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "teddy",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the collectors fed by the middleware. Create one per
// registry; registering the same names twice panics.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	errors     *prometheus.CounterVec
}

// NewMetrics registers the operation collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "operations_total",
			Help:        "Total number of store operations",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "space", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "operation_duration_seconds",
			Help:        "Store operation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "operation_errors_total",
			Help:        "Total number of failed store operations",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "error_type"}),
	}
}

// Middleware returns the middleware recording into m.
func (m *Metrics) Middleware() teddy.Middleware {
	return func(op teddy.Operation, next func() error) error {
		start := time.Now()
		err := next()
		m.duration.WithLabelValues(op.Kind).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
			m.errors.WithLabelValues(op.Kind, categorizeError(err)).Inc()
		}
		m.operations.WithLabelValues(op.Kind, op.Store.Space, status).Inc()
		return err
	}
}

// Prometheus creates metrics on the configured registry and returns their
// middleware.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	t := teddy.New(teddy.WithMiddleware(middleware.Prometheus(middleware.WithRegistry(reg))))
func Prometheus(opts ...MetricsOption) teddy.Middleware {
	return NewMetrics(opts...).Middleware()
}

// categorizeError maps err to a fixed label value.
func categorizeError(err error) string {
	var panicErr *teddy.PanicError
	switch {
	case errors.Is(err, path.ErrSyntax):
		return "syntax"
	case errors.Is(err, engine.ErrInvalidVariable):
		return "variable"
	case errors.Is(err, engine.ErrNotContainer):
		return "not_container"
	case errors.Is(err, engine.ErrNotArray):
		return "not_array"
	case errors.Is(err, engine.ErrNoMatch):
		return "no_match"
	case errors.Is(err, reactive.ErrReadOnly):
		return "read_only"
	case errors.Is(err, teddy.ErrUnknownAction), errors.Is(err, teddy.ErrUnknownGetter):
		return "unknown"
	case errors.As(err, &panicErr):
		return "panic"
	default:
		return "internal"
	}
}
