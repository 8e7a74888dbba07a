package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/teddy"
	"github.com/vango-dev/teddy/pkg/engine"
	"github.com/vango-dev/teddy/pkg/path"
)

var def = teddy.Def("shop", "cart")

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

// =============================================================================
// Prometheus
// =============================================================================

func TestPrometheusRecordsOperations(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))
	td := teddy.New(teddy.WithMiddleware(m.Middleware()))
	defer td.Close()
	td.SetStore(def, teddy.Config{State: map[string]any{"total": 1}})

	td.Get(def, "total")
	td.Set(def, "total", 2)
	td.Set(def, "total.x", 3)

	if got := metricCounterValue(t, m.operations.WithLabelValues("get", "shop", "success")); got != 1 {
		t.Errorf("expected 1 successful get, got %v", got)
	}
	if got := metricCounterValue(t, m.operations.WithLabelValues("set", "shop", "success")); got != 1 {
		t.Errorf("expected 1 successful set, got %v", got)
	}
	if got := metricCounterValue(t, m.operations.WithLabelValues("set", "shop", "error")); got != 1 {
		t.Errorf("expected 1 failed set, got %v", got)
	}
	if got := metricCounterValue(t, m.errors.WithLabelValues("set", "not_container")); got != 1 {
		t.Errorf("expected 1 not_container error, got %v", got)
	}
	if got := metricHistogramCount(t, m.duration.WithLabelValues("set")); got != 2 {
		t.Errorf("expected 2 set observations, got %d", got)
	}
}

func TestPrometheusRegistersOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	mw := Prometheus(WithRegistry(reg), WithNamespace("app"))
	if err := mw(teddy.Operation{Kind: "run"}, func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"app_operations_total", "app_operation_duration_seconds"} {
		if !names[want] {
			t.Errorf("expected %s to be registered, got %v", want, names)
		}
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&path.ParseError{Path: "a[", Reason: "unclosed"}, "syntax"},
		{&engine.InvalidVariableError{Variable: "id", Missing: true}, "variable"},
		{engine.ErrNotContainer, "not_container"},
		{engine.ErrNotArray, "not_array"},
		{engine.ErrNoMatch, "no_match"},
		{teddy.ErrUnknownAction, "unknown"},
		{&teddy.PanicError{Value: "boom"}, "panic"},
		{errors.New("other"), "internal"},
	}
	for _, tt := range tests {
		if got := categorizeError(tt.err); got != tt.want {
			t.Errorf("categorizeError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

// =============================================================================
// OpenTelemetry
// =============================================================================

type recordedSpan struct {
	trace.Span
	name   string
	attrs  []attribute.KeyValue
	parent trace.SpanContext
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordedSpan) RecordError(err error, _ ...trace.EventOption) { s.errs = append(s.errs, err) }

func (s *recordedSpan) SetStatus(code codes.Code, _ string) { s.status = code }

func (s *recordedSpan) End(...trace.SpanEndOption) { s.ended = true }

type recorder struct {
	noop.TracerProvider
	mu    sync.Mutex
	spans []*recordedSpan
}

func (r *recorder) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{r: r}
}

type recordingTracer struct {
	noop.Tracer
	r *recorder
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	ctx, inner := t.Tracer.Start(ctx, name, opts...)
	span := &recordedSpan{
		Span:   inner,
		name:   name,
		attrs:  cfg.Attributes(),
		parent: trace.SpanContextFromContext(ctx),
	}
	t.r.mu.Lock()
	t.r.spans = append(t.r.spans, span)
	t.r.mu.Unlock()
	return trace.ContextWithSpan(ctx, span), span
}

func attr(span *recordedSpan, key string) string {
	for _, kv := range span.attrs {
		if string(kv.Key) == key {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestOpenTelemetrySpanPerOperation(t *testing.T) {
	rec := &recorder{}
	td := teddy.New(teddy.WithMiddleware(OpenTelemetry(WithTracerProvider(rec))))
	defer td.Close()
	td.SetStore(def, teddy.Config{State: map[string]any{"total": 1}})

	td.Set(def, "total", 2)
	td.Set(def, "total.x", 3)

	if len(rec.spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(rec.spans))
	}
	ok, failed := rec.spans[0], rec.spans[1]
	if ok.name != "teddy.set shop.cart" {
		t.Errorf("expected span name teddy.set shop.cart, got %q", ok.name)
	}
	if attr(ok, "teddy.path") != "total" || attr(ok, "teddy.kind") != "set" {
		t.Errorf("unexpected attributes %v", ok.attrs)
	}
	if ok.status != codes.Ok || !ok.ended {
		t.Errorf("expected ended ok span, got status %v ended %t", ok.status, ok.ended)
	}
	if failed.status != codes.Error || len(failed.errs) != 1 {
		t.Errorf("expected error span, got status %v errors %v", failed.status, failed.errs)
	}
	if !errors.Is(failed.errs[0], engine.ErrNotContainer) {
		t.Errorf("expected ErrNotContainer recorded, got %v", failed.errs[0])
	}
}

func TestOpenTelemetryUsesOperationContext(t *testing.T) {
	rec := &recorder{}
	td := teddy.New(teddy.WithMiddleware(OpenTelemetry(WithTracerProvider(rec))))
	defer td.Close()

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{2},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), parent)
	td.Get(def, "a", teddy.WithContext(ctx))

	if len(rec.spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(rec.spans))
	}
	if rec.spans[0].parent.TraceID() != parent.TraceID() {
		t.Errorf("expected span to join trace %s, got %s", parent.TraceID(), rec.spans[0].parent.TraceID())
	}
}

func TestOpenTelemetryFilterAndOptions(t *testing.T) {
	rec := &recorder{}
	mw := OpenTelemetry(
		WithTracerProvider(rec),
		WithIncludePath(false),
		WithOperationFilter(func(op teddy.Operation) bool { return op.Kind != "get" }),
		WithAttributeExtractor(func(teddy.Operation) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	)

	called := 0
	next := func() error { called++; return nil }
	mw(teddy.Operation{Kind: "get", Store: def, Path: "a"}, next)
	mw(teddy.Operation{Kind: "set", Store: def, Path: "secret"}, next)

	if called != 2 {
		t.Errorf("expected next to run twice, got %d", called)
	}
	if len(rec.spans) != 1 {
		t.Fatalf("expected the filtered get to be skipped, got %d spans", len(rec.spans))
	}
	if attr(rec.spans[0], "teddy.path") != "" {
		t.Error("expected path to be omitted")
	}
	if attr(rec.spans[0], "test.attr") != "ok" {
		t.Error("expected extracted attribute")
	}
}
