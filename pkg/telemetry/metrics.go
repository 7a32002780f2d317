package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the gateway, the runtime and
// operation dispatch. A nil or disabled Metrics records nothing.
type Metrics struct {
	config MetricsConfig

	// Gateway metrics
	gatewayBuilds     *prometheus.CounterVec
	gatewayOperations prometheus.Gauge
	gatewayNamespaces prometheus.Gauge
	namesSkipped      *prometheus.CounterVec

	// Runtime metrics
	runtimeStarts        *prometheus.CounterVec
	runtimeStartDuration prometheus.Histogram
	moduleLoads          *prometheus.CounterVec

	// Dispatch metrics
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec

	// Error metrics
	errorsByCode *prometheus.CounterVec

	// Script metrics
	scriptRuns *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		gatewayBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_builds_total",
				Help:      "Total number of gateway builds",
			},
			[]string{"status"},
		),
		gatewayOperations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gateway_operations",
				Help:      "Number of operations attached by the most recent gateway build",
			},
		),
		gatewayNamespaces: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gateway_namespaces",
				Help:      "Number of namespaces created by the most recent gateway build",
			},
		),
		namesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_names_skipped_total",
				Help:      "Operation names that could not be attached to the gateway tree",
			},
			[]string{"reason"},
		),

		runtimeStarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runtime_starts_total",
				Help:      "Total number of runtime start attempts",
			},
			[]string{"status"},
		),
		runtimeStartDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "runtime_start_duration_seconds",
				Help:      "Duration of runtime start in seconds",
				Buckets:   buckets,
			},
		),
		moduleLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "module_loads_total",
				Help:      "Operation library modules loaded, by source",
			},
			[]string{"source"},
		),

		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "op_dispatch_total",
				Help:      "Total number of operation dispatches",
			},
			[]string{"form", "status"},
		),
		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "op_dispatch_duration_seconds",
				Help:      "Duration of operation dispatch in seconds",
				Buckets:   buckets,
			},
			[]string{"form"},
		),

		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by class and code",
			},
			[]string{"class", "code"},
		),

		scriptRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "script_runs_total",
				Help:      "Total number of script executions",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.gatewayBuilds,
		m.gatewayOperations,
		m.gatewayNamespaces,
		m.namesSkipped,
		m.runtimeStarts,
		m.runtimeStartDuration,
		m.moduleLoads,
		m.dispatches,
		m.dispatchDuration,
		m.errorsByCode,
		m.scriptRuns,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// Gateway Metrics

// RecordGatewayBuild records a completed gateway build.
func (m *Metrics) RecordGatewayBuild(status string, operations, namespaces int) {
	if !m.enabled() {
		return
	}
	m.gatewayBuilds.WithLabelValues(status).Inc()
	m.gatewayOperations.Set(float64(operations))
	m.gatewayNamespaces.Set(float64(namespaces))
}

// RecordNameSkipped records an operation name left out of the gateway tree.
func (m *Metrics) RecordNameSkipped(reason string) {
	if !m.enabled() {
		return
	}
	m.namesSkipped.WithLabelValues(reason).Inc()
}

// Runtime Metrics

// RecordRuntimeStart records a runtime start attempt.
func (m *Metrics) RecordRuntimeStart(status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.runtimeStarts.WithLabelValues(status).Inc()
	m.runtimeStartDuration.Observe(duration.Seconds())
}

// RecordModuleLoad records a module loaded from source (cache, remote, inline).
func (m *Metrics) RecordModuleLoad(source string) {
	if !m.enabled() {
		return
	}
	m.moduleLoads.WithLabelValues(source).Inc()
}

// Dispatch Metrics

// RecordDispatch records an operation dispatch.
func (m *Metrics) RecordDispatch(form, status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.dispatches.WithLabelValues(form, status).Inc()
	m.dispatchDuration.WithLabelValues(form).Observe(duration.Seconds())
}

// RecordError records an error by class and code.
func (m *Metrics) RecordError(class, code string) {
	if !m.enabled() {
		return
	}
	m.errorsByCode.WithLabelValues(class, code).Inc()
}

// RecordScriptRun records a script execution.
func (m *Metrics) RecordScriptRun(status string) {
	if !m.enabled() {
		return
	}
	m.scriptRuns.WithLabelValues(status).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server exposing metrics on the configured
// address. Serve errors are delivered to onError, which may be nil.
func (m *Metrics) StartMetricsServer(onError func(error)) (*http.Server, error) {
	if !m.enabled() {
		return nil, errors.New("metrics are disabled")
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && onError != nil {
			onError(err)
		}
	}()

	return server, nil
}
