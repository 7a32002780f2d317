package bridge

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/scijava/opsgate/pkg/ops"
	"github.com/scijava/opsgate/pkg/telemetry"
)

// HostModuleName is the import module name of the host functions.
const HostModuleName = "opsgate"

// Runtime hosts operation library modules in a wazero runtime.
type Runtime struct {
	mu sync.Mutex

	cfg        Config
	inline     []inlineModule
	httpClient *http.Client
	logger     *telemetry.Logger
	metrics    *telemetry.Metrics
	tracer     *telemetry.Tracer

	runtime wazero.Runtime
	modules []*Module
	env     *Environment
}

type inlineModule struct {
	coord  string
	module []byte
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(r *Runtime) { r.tracer = t }
}

// WithHTTPClient sets the client used to reach repositories.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Runtime) { r.httpClient = c }
}

// WithModule adds a module given as bytes. It is loaded before the configured
// endpoints. When inline modules are given and Config.Endpoints is empty, no
// default endpoints are resolved.
func WithModule(coord string, module []byte) Option {
	return func(r *Runtime) {
		r.inline = append(r.inline, inlineModule{coord: coord, module: module})
	}
}

// New creates a runtime for cfg. Nothing is loaded until Start.
func New(cfg Config, opts ...Option) *Runtime {
	r := &Runtime{logger: telemetry.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.NewComponentLogger("runtime")

	explicit := len(cfg.Endpoints) > 0
	r.cfg = cfg.withDefaults()
	if !explicit && len(r.inline) > 0 {
		r.cfg.Endpoints = nil
	}
	return r
}

// Config returns the effective configuration.
func (r *Runtime) Config() Config {
	return r.cfg
}

// Started reports whether Start has completed successfully.
func (r *Runtime) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.env != nil
}

// Start resolves and instantiates every module. It is a no-op once started.
// Any failure leaves the runtime stopped and returns an error of class
// runtime_start.
func (r *Runtime) Start(ctx context.Context) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.env != nil {
		return nil
	}

	ctx, span := r.tracer.StartRuntimeSpan(ctx, len(r.inline)+len(r.cfg.Endpoints))
	timer := telemetry.NewTimer()
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
			r.metrics.RecordError(string(ops.ErrorClassRuntimeStart), "")
			r.logger.WithError(err).Error("runtime start failed")
		}
		r.metrics.RecordRuntimeStart(status, timer.Duration())
		telemetry.End(span, err)
	}()

	artifacts, err := r.resolve(ctx)
	if err != nil {
		return ops.NewRuntimeStartError("failed to resolve modules", err)
	}

	limit := r.cfg.MemoryLimitPages
	for _, a := range artifacts {
		if a.Manifest != nil && a.Manifest.MemoryLimitPages > limit {
			limit = a.Manifest.MemoryLimitPages
		}
	}

	runtimeConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(limit).
		WithCloseOnContextDone(true)
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	modules, err := r.instantiate(ctx, rt, artifacts)
	if err != nil {
		rt.Close(ctx)
		return ops.NewRuntimeStartError("failed to instantiate modules", err)
	}

	env, err := newEnvironment(ctx, modules, r.logger)
	if err != nil {
		rt.Close(ctx)
		return ops.NewRuntimeStartError("failed to enumerate operations", err)
	}

	r.runtime = rt
	r.modules = modules
	r.env = env
	r.logger.WithField("modules", len(modules)).WithField("operations", len(env.infos)).Info("runtime started")
	return nil
}

func (r *Runtime) resolve(ctx context.Context) ([]*Artifact, error) {
	artifacts := make([]*Artifact, 0, len(r.inline)+len(r.cfg.Endpoints))
	for _, m := range r.inline {
		coord, err := ParseCoordinate(m.coord)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, &Artifact{Coordinate: coord, Module: m.module, Source: SourceInline})
		r.metrics.RecordModuleLoad(string(SourceInline))
	}
	if len(r.cfg.Endpoints) == 0 {
		return artifacts, nil
	}

	resolver := NewResolver(r.cfg, r.httpClient, r.logger, r.metrics)
	for _, endpoint := range r.cfg.Endpoints {
		coord, err := ParseCoordinate(endpoint)
		if err != nil {
			return nil, err
		}
		a, err := resolver.Resolve(ctx, coord)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

func (r *Runtime) instantiate(ctx context.Context, rt wazero.Runtime, artifacts []*Artifact) ([]*Module, error) {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}
	if err := r.registerHostFunctions(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to instantiate host module: %w", err)
	}

	modules := make([]*Module, 0, len(artifacts))
	for _, a := range artifacts {
		name := a.Coordinate.String()
		compiled, err := rt.CompileModule(ctx, a.Module)
		if err != nil {
			return nil, fmt.Errorf("module %s: failed to compile: %w", name, err)
		}
		cfg := wazero.NewModuleConfig().
			WithName(name).
			WithStartFunctions("_initialize")
		instance, err := rt.InstantiateModule(ctx, compiled, cfg)
		if err != nil {
			return nil, fmt.Errorf("module %s: failed to instantiate: %w", name, err)
		}
		m, err := newModule(name, instance, r.cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", name, err)
		}
		r.logger.WithModule(name).WithField("source", string(a.Source)).Debug("module loaded")
		telemetry.AddEvent(ctx, "module.loaded",
			telemetry.AttrModule.String(name),
			telemetry.AttrModuleSource.String(string(a.Source)),
		)
		modules = append(modules, m)
	}
	return modules, nil
}

// registerHostFunctions exposes log(level, ptr, len) to modules.
func (r *Runtime) registerHostFunctions(ctx context.Context, rt wazero.Runtime) error {
	logger := r.logger
	_, err := rt.NewHostModuleBuilder(HostModuleName).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, level, ptr, length uint32) {
			msg, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return
			}
			l := logger.WithModule(mod.Name())
			switch level {
			case 0:
				l.Debug(string(msg))
			case 1:
				l.Info(string(msg))
			case 2:
				l.Warn(string(msg))
			default:
				l.Error(string(msg))
			}
		}).
		Export("log").
		Instantiate(ctx)
	return err
}

// Environment returns the operation environment of a started runtime.
func (r *Runtime) Environment(context.Context) (ops.Environment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.env == nil {
		return nil, fmt.Errorf("runtime is not started")
	}
	return r.env, nil
}

// Close releases every module and the wazero runtime.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runtime == nil {
		return nil
	}
	err := r.runtime.Close(ctx)
	r.runtime = nil
	r.modules = nil
	r.env = nil
	return err
}
