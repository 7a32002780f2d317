package gateway

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"github.com/scijava/opsgate/pkg/ops"
	"github.com/scijava/opsgate/pkg/telemetry"
)

// Op is a callable bound to one fully-qualified operation name. Every call
// issues a new request against the environment.
type Op struct {
	env       ops.Environment
	namespace string
	name      string
	leaf      string
	inst      *instruments
}

func newOp(env ops.Environment, namespace, name, leaf string, inst *instruments) *Op {
	return &Op{env: env, namespace: namespace, name: name, leaf: leaf, inst: inst}
}

func (*Op) member() {}

// Name returns the fully-qualified operation name.
func (o *Op) Name() string { return o.name }

// Leaf returns the last segment of the name.
func (o *Op) Leaf() string { return o.leaf }

// Namespace returns the path of the owning namespace.
func (o *Op) Namespace() string { return o.namespace }

// CallOption adjusts how Call dispatches.
type CallOption func(*callOptions)

type callOptions struct {
	run     bool
	inplace any
	out     any
}

// Run selects immediate execution (true, the default) or a deferred executor.
func Run(run bool) CallOption {
	return func(o *callOptions) { o.run = run }
}

// Inplace selects in-place dispatch mutating target. A nil target is ignored.
func Inplace(target any) CallOption {
	return func(o *callOptions) { o.inplace = target }
}

// Out selects output-parameter dispatch into container. A nil container is
// ignored.
func Out(container any) CallOption {
	return func(o *callOptions) { o.out = container }
}

// Call dispatches the operation with inputs in order. Inplace takes
// precedence over Out; with neither the function form is used. When Run(false)
// is given the result is an ops.Executor that has not run yet.
//
// Errors from the environment are returned unchanged.
func (o *Op) Call(ctx context.Context, inputs []any, opts ...CallOption) (any, error) {
	co := callOptions{run: true}
	for _, opt := range opts {
		opt(&co)
	}

	req := o.env.Op(o.name).Input(inputs...)
	form := formOf(co)

	ctx, span := o.inst.tracer.StartDispatchSpan(ctx, o.name, string(form))
	timer := telemetry.NewTimer()

	var (
		result any
		err    error
	)
	switch form {
	case ops.FormInplace:
		if co.run {
			result, err = req.Mutate(ctx, co.inplace)
		} else {
			result, err = req.Inplace(ctx, co.inplace)
		}
	case ops.FormComputer:
		req.Output(co.out)
		if co.run {
			result, err = req.Compute(ctx)
		} else {
			result, err = req.Computer(ctx)
		}
	default:
		if co.run {
			result, err = req.Apply(ctx)
		} else {
			result, err = req.Function(ctx)
		}
	}

	o.record(ctx, form, co.run, timer, err)
	telemetry.End(span, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Executor returns the deferred form of the call selected by opts.
func (o *Op) Executor(ctx context.Context, inputs []any, opts ...CallOption) (ops.Executor, error) {
	res, err := o.Call(ctx, inputs, append(opts, Run(false))...)
	if err != nil {
		return nil, err
	}
	return res.(ops.Executor), nil
}

func formOf(co callOptions) ops.Form {
	switch {
	case !absent(co.inplace):
		return ops.FormInplace
	case !absent(co.out):
		return ops.FormComputer
	}
	return ops.FormFunction
}

// absent reports whether v is nil or a nil pointer, map, slice or interface.
func absent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func (o *Op) record(ctx context.Context, form ops.Form, run bool, timer *telemetry.Timer, err error) {
	status := "success"
	if err != nil {
		status = "failure"
		code := ops.CodeOf(err)
		o.inst.metrics.RecordError(string(ops.ErrorClassDispatch), code)
		telemetry.SetErrorAttributes(ctx, string(ops.ErrorClassDispatch), code)
	}
	o.inst.metrics.RecordDispatch(string(form), status, timer.Duration())

	fields := map[string]any{
		"dispatch_id": uuid.NewString(),
		"form":        string(form),
		"run":         run,
	}
	if id := telemetry.TraceID(ctx); id != "" {
		fields["trace_id"] = id
	}
	log := o.inst.logger.WithOperation(o.name).WithFields(fields)
	if err != nil {
		log.WithError(err).Debug("dispatch failed")
		return
	}
	log.Trace("dispatched")
}
