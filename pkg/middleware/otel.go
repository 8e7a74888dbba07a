package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/teddy"
)

// Default tracer name for teddy operations.
const defaultTracerName = "teddy"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "teddy").
	TracerName string

	// Provider supplies the tracer. If nil, the global provider is used.
	Provider trace.TracerProvider

	// IncludePath includes the operation path in traces.
	// Enabled by default.
	IncludePath bool

	// Filter determines which operations to trace.
	// If nil, all operations are traced.
	Filter func(op teddy.Operation) bool

	// AttributeExtractor adds custom attributes to every traced operation.
	AttributeExtractor func(op teddy.Operation) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.Provider = tp
	}
}

// WithIncludePath enables/disables including the path in traces.
func WithIncludePath(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludePath = include
	}
}

// WithOperationFilter sets a filter function for operations.
func WithOperationFilter(filter func(op teddy.Operation) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(op teddy.Operation) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:  defaultTracerName,
		IncludePath: true,
	}
}

// OpenTelemetry creates middleware that traces every store operation.
//
// The span is started from op.Context, so operations issued with
// teddy.WithContext join the caller's trace. Errors are recorded on the span
// and set its status.
//
// Example:
//
//	t := teddy.New(teddy.WithMiddleware(
//	    middleware.OpenTelemetry(middleware.WithTracerName("checkout")),
//	))
func OpenTelemetry(opts ...OTelOption) teddy.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	provider := config.Provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	tracer := provider.Tracer(config.TracerName)

	return func(op teddy.Operation, next func() error) error {
		if config.Filter != nil && !config.Filter(op) {
			return next()
		}

		attrs := []attribute.KeyValue{
			attribute.String("teddy.kind", op.Kind),
			attribute.String("teddy.space", op.Store.Space),
			attribute.String("teddy.name", op.Store.Name),
		}
		if config.IncludePath {
			attrs = append(attrs, attribute.String("teddy.path", op.Path))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(op)...)
		}

		ctx := op.Context
		if ctx == nil {
			ctx = context.Background()
		}
		_, span := tracer.Start(ctx, spanName(op),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		err := next()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}

func spanName(op teddy.Operation) string {
	return fmt.Sprintf("teddy.%s %s", op.Kind, op.Store)
}
