// Package telemetry provides logging, tracing and metrics for opsgate.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus).
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// Pass the pieces to the components that use them:
//
//	gw, err := gateway.Init(ctx, rt,
//	    gateway.WithLogger(tel.Logger),
//	    gateway.WithMetrics(tel.Metrics),
//	    gateway.WithTracer(tel.Tracer),
//	)
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("gateway")
//	logger.WithOperation("math.add").Debug("dispatching")
//	logger.WithError(err).Warn("skipping operation name")
//
// Log levels: trace, debug, info, warn, error, fatal. Nop returns a logger
// that discards everything and is the default for every component.
//
// # Tracing
//
// Spans are emitted for gateway builds (gateway.build), runtime starts
// (runtime.start) and operation dispatch (op.dispatch). Exporters: stdout
// (pretty-printed JSON), otlp (gRPC) and none. A disabled or nil Tracer
// produces no-op spans.
//
// # Metrics
//
// Available metrics (prefixed with the configured namespace):
//
//   - gateway_builds_total{status}
//   - gateway_operations, gateway_namespaces
//   - gateway_names_skipped_total{reason}
//   - runtime_starts_total{status}, runtime_start_duration_seconds
//   - module_loads_total{source}
//   - op_dispatch_total{form,status}, op_dispatch_duration_seconds{form}
//   - errors_total{class,code}
//   - script_runs_total{status}
//
// Metrics live in a private registry served by Handler or StartMetricsServer.
package telemetry
