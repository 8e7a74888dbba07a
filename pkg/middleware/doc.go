// Package middleware provides observability middleware for teddy store
// operations.
//
// # Prometheus Metrics
//
// The Prometheus middleware counts and times every operation:
//   - teddy_operations_total: operations by kind, space and status
//   - teddy_operation_duration_seconds: duration histogram by kind
//   - teddy_operation_errors_total: failures by kind and error type
//
//	t := teddy.New(teddy.WithMiddleware(
//	    middleware.Prometheus(middleware.WithRegistry(reg)),
//	))
//
// Then expose the registry:
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # OpenTelemetry Middleware
//
// The OpenTelemetry middleware starts a span per operation as a child of the
// context given with teddy.WithContext:
//
//	t := teddy.New(teddy.WithMiddleware(middleware.OpenTelemetry()))
//	t.Set(def, "cart.total", 10, teddy.WithContext(ctx))
//
// Spans carry the operation kind, store and path, and record failures.
package middleware
