package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"

	"github.com/scijava/opsgate/pkg/ops"
	"github.com/scijava/opsgate/pkg/telemetry"
)

// Runtime is the foreign runtime hosting the operation environment.
type Runtime interface {
	// Started reports whether the runtime is live.
	Started() bool

	// Start brings the runtime up.
	Start(ctx context.Context) error

	// Environment returns the environment of a started runtime.
	Environment(ctx context.Context) (ops.Environment, error)
}

type staticRuntime struct {
	env ops.Environment
}

// StaticRuntime returns a Runtime that is always started and serves env.
func StaticRuntime(env ops.Environment) Runtime {
	return staticRuntime{env: env}
}

func (staticRuntime) Started() bool { return true }

func (staticRuntime) Start(context.Context) error { return nil }

func (s staticRuntime) Environment(context.Context) (ops.Environment, error) {
	return s.env, nil
}

type instruments struct {
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// Option configures gateway construction.
type Option func(*instruments)

// WithLogger sets the logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(i *instruments) { i.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(i *instruments) { i.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(i *instruments) { i.tracer = t }
}

// Gateway is the root of an operation tree built from one environment.
type Gateway struct {
	id    string
	env   ops.Environment
	root  *Namespace
	names []string
	inst  *instruments
}

// Init starts rt if needed and builds a gateway over its environment.
// A start failure is returned as an ops.ErrRuntimeStart error.
func Init(ctx context.Context, rt Runtime, opts ...Option) (*Gateway, error) {
	if !rt.Started() {
		if err := rt.Start(ctx); err != nil {
			if !errors.Is(err, ops.ErrRuntimeStart) {
				err = ops.NewRuntimeStartError("failed to start runtime", err)
			}
			return nil, err
		}
	}

	env, err := rt.Environment(ctx)
	if err != nil {
		return nil, ops.NewRuntimeStartError("failed to obtain operation environment", err)
	}
	return Build(ctx, env, opts...)
}

// Build builds a gateway over a live environment. Names are attached in
// sorted order; the first name to claim a segment keeps it.
func Build(ctx context.Context, env ops.Environment, opts ...Option) (gw *Gateway, err error) {
	inst := &instruments{logger: telemetry.Nop()}
	for _, opt := range opts {
		opt(inst)
	}

	id := uuid.NewString()
	inst.logger = inst.logger.NewComponentLogger("gateway").WithGatewayID(id)

	ctx, span := inst.tracer.StartGatewaySpan(ctx, id)
	defer func() { telemetry.End(span, err) }()

	infos, err := env.Infos(ctx)
	if err != nil {
		inst.metrics.RecordGatewayBuild("failure", 0, 0)
		return nil, fmt.Errorf("failed to enumerate operations: %w", err)
	}

	names := ops.Names(infos)
	slices.Sort(names)

	gw = &Gateway{
		id:   id,
		env:  env,
		root: newRoot(env, inst),
		inst: inst,
	}

	parsed := make(map[string]OpName, len(names))
	for _, name := range names {
		n, err := ParseOpName(name)
		if err != nil {
			inst.logger.WithOperation(name).WithError(err).Warn("skipping operation")
			inst.metrics.RecordNameSkipped("invalid")
			continue
		}
		parsed[name] = n
	}

	namespaces := 0
	for _, name := range names {
		n, ok := parsed[name]
		if !ok || n.Global() {
			continue
		}
		if _, exists := gw.root.children[n.Base()]; !exists {
			namespaces++
		}
		attachNamespace(gw.root, env, n.Base())
	}

	for _, name := range names {
		n, ok := parsed[name]
		if !ok {
			continue
		}
		if gw.attach(n, &namespaces) {
			gw.names = append(gw.names, name)
		}
	}

	inst.metrics.RecordGatewayBuild("success", len(gw.names), namespaces)
	span.SetAttributes(telemetry.AttrGatewayOps.Int(len(gw.names)))
	if len(gw.names) == 0 {
		inst.logger.Info("operation registry is empty")
	} else {
		inst.logger.WithField("operations", len(gw.names)).
			WithField("namespaces", namespaces).
			Debug("gateway built")
	}
	return gw, nil
}

// attach walks n from the root and binds its leaf. It reports whether the
// operation is reachable under its own name afterwards.
func (g *Gateway) attach(n OpName, namespaces *int) bool {
	node := g.root
	for _, segment := range n.Namespace {
		_, existed := node.children[segment]
		next, ok := attachNamespace(node, g.env, segment)
		if !ok {
			g.inst.logger.WithOperation(n.String()).
				Warnf("skipping operation: %q is already an operation", node.qualify(segment))
			g.inst.metrics.RecordNameSkipped("conflict")
			return false
		}
		if !existed {
			*namespaces++
		}
		node = next
	}

	if _, ok := attachOperation(node, g.env, n.Leaf).(*Op); !ok {
		g.inst.logger.WithOperation(n.String()).Warn("skipping operation: name is already a namespace")
		g.inst.metrics.RecordNameSkipped("conflict")
		return false
	}
	return true
}

// ID returns the instance ID of the gateway.
func (g *Gateway) ID() string { return g.id }

// Environment returns the shared operation environment.
func (g *Gateway) Environment() ops.Environment { return g.env }

// Root returns the global namespace.
func (g *Gateway) Root() *Namespace { return g.root }

// Get returns the root child bound to name.
func (g *Gateway) Get(name string) (Member, bool) { return g.root.Get(name) }

// Namespace returns the top-level namespace bound to name, or nil.
func (g *Gateway) Namespace(name string) *Namespace { return g.root.Namespace(name) }

// Op returns the global operation bound to name, or nil.
func (g *Gateway) Op(name string) *Op { return g.root.Op(name) }

// OpNames returns the sorted names of every attached operation.
func (g *Gateway) OpNames() []string { return slices.Clone(g.names) }

// Resolve walks a dotted name to its operation.
func (g *Gateway) Resolve(name string) (*Op, error) {
	n, err := ParseOpName(name)
	if err != nil {
		return nil, ops.NewDispatchError(ops.CodeNotFound, name, "invalid operation name", err)
	}
	node := g.root
	for _, segment := range n.Namespace {
		if node = node.Namespace(segment); node == nil {
			return nil, ops.NewDispatchError(ops.CodeNotFound, name, "no namespace "+segment, nil)
		}
	}
	op := node.Op(n.Leaf)
	if op == nil {
		return nil, ops.NewDispatchError(ops.CodeNotFound, name, "no operation named "+name, nil)
	}
	return op, nil
}

// Call resolves name and calls it.
func (g *Gateway) Call(ctx context.Context, name string, inputs []any, opts ...CallOption) (any, error) {
	op, err := g.Resolve(name)
	if err != nil {
		return nil, err
	}
	return op.Call(ctx, inputs, opts...)
}

// Help writes the environment's help for name, or for every operation when
// name is empty.
func (g *Gateway) Help(ctx context.Context, w io.Writer, name string) error {
	text, err := g.env.Help(ctx, name)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}

// HelpVerbose is Help with full descriptor detail. With an empty name every
// operation is described.
func (g *Gateway) HelpVerbose(ctx context.Context, w io.Writer, name string) error {
	text, err := g.env.HelpVerbose(ctx, name)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}
