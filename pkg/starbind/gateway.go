package starbind

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"

	"github.com/scijava/opsgate/pkg/gateway"
	"github.com/scijava/opsgate/pkg/ops"
)

// contextKey is the thread-local key holding the context.Context of a run.
const contextKey = "context"

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(contextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// Namespace exposes a gateway namespace. Children are reached with dotted
// attribute access; a namespace itself cannot be called.
type Namespace struct {
	ns *gateway.Namespace
}

// NewNamespace wraps ns.
func NewNamespace(ns *gateway.Namespace) *Namespace {
	return &Namespace{ns: ns}
}

var _ starlark.HasAttrs = (*Namespace)(nil)

func (n *Namespace) String() string        { return fmt.Sprintf("<namespace %s>", n.ns.Path()) }
func (n *Namespace) Type() string          { return "namespace" }
func (n *Namespace) Freeze()               {}
func (n *Namespace) Truth() starlark.Bool  { return starlark.True }
func (n *Namespace) Hash() (uint32, error) { return starlark.String(n.ns.Path()).Hash() }

// Attr implements starlark.HasAttrs.
func (n *Namespace) Attr(name string) (starlark.Value, error) {
	m, ok := n.ns.Get(name)
	if !ok {
		return nil, nil
	}
	return wrapMember(m), nil
}

// AttrNames implements starlark.HasAttrs.
func (n *Namespace) AttrNames() []string {
	return n.ns.Names()
}

func wrapMember(m gateway.Member) starlark.Value {
	switch m := m.(type) {
	case *gateway.Namespace:
		return NewNamespace(m)
	case *gateway.Op:
		return NewOp(m)
	}
	return starlark.None
}

// Op exposes a gateway operation as a Starlark callable. Positional
// arguments are the inputs; the keywords run, inplace and out select the
// dispatch form.
type Op struct {
	op *gateway.Op
}

// NewOp wraps op.
func NewOp(op *gateway.Op) *Op {
	return &Op{op: op}
}

var _ starlark.Callable = (*Op)(nil)

func (o *Op) String() string        { return fmt.Sprintf("<op %s>", o.op.Name()) }
func (o *Op) Type() string          { return "op" }
func (o *Op) Freeze()               {}
func (o *Op) Truth() starlark.Bool  { return starlark.True }
func (o *Op) Hash() (uint32, error) { return starlark.String(o.op.Name()).Hash() }
func (o *Op) Name() string          { return o.op.Name() }

// CallInternal implements starlark.Callable.
func (o *Op) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	inputs, err := goArgs(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.op.Name(), err)
	}

	var opts []gateway.CallOption
	for _, kv := range kwargs {
		key := string(kv[0].(starlark.String))
		switch key {
		case "run":
			run, ok := kv[1].(starlark.Bool)
			if !ok {
				return nil, fmt.Errorf("%s: run must be a bool, got %s", o.op.Name(), kv[1].Type())
			}
			opts = append(opts, gateway.Run(bool(run)))
		case "inplace", "out":
			target, err := fromStarlarkValue(kv[1])
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", o.op.Name(), key, err)
			}
			if key == "inplace" {
				opts = append(opts, gateway.Inplace(target))
			} else {
				opts = append(opts, gateway.Out(target))
			}
		default:
			return nil, fmt.Errorf("%s: unexpected keyword argument %s", o.op.Name(), key)
		}
	}

	result, err := o.op.Call(threadContext(thread), inputs, opts...)
	if err != nil {
		return nil, err
	}
	return toStarlarkValue(result)
}

// Executor exposes a deferred call. Calling it with no arguments runs the
// bound inputs; arguments replace them.
type Executor struct {
	exec ops.Executor
}

var _ starlark.Callable = (*Executor)(nil)

func (e *Executor) String() string {
	return fmt.Sprintf("<executor %s %s>", e.exec.Kind(), e.exec.Name())
}

func (e *Executor) Type() string          { return "executor" }
func (e *Executor) Freeze()               {}
func (e *Executor) Truth() starlark.Bool  { return starlark.True }
func (e *Executor) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: executor") }
func (e *Executor) Name() string          { return e.exec.Name() }

// CallInternal implements starlark.Callable.
func (e *Executor) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: executor takes no keyword arguments", e.exec.Name())
	}
	inputs, err := goArgs(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.exec.Name(), err)
	}
	result, err := e.exec.Execute(threadContext(thread), inputs...)
	if err != nil {
		return nil, err
	}
	return toStarlarkValue(result)
}

func goArgs(args starlark.Tuple) ([]any, error) {
	inputs := make([]any, len(args))
	for i, arg := range args {
		v, err := fromStarlarkValue(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		inputs[i] = v
	}
	return inputs, nil
}
