package ops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Func implements the function form of an operation.
type Func func(ctx context.Context, inputs []any) (any, error)

// ComputeFunc implements the computer form: it writes the result into out.
type ComputeFunc func(ctx context.Context, inputs []any, out any) error

// MutateFunc implements the inplace form: it writes the result into target,
// which may alias one of the inputs.
type MutateFunc func(ctx context.Context, inputs []any, target any) error

// Op is an operation registered with a Registry.
type Op struct {
	Names       []string
	Description string
	Inputs      []Param
	Output      Param

	Func    Func
	Compute ComputeFunc
	Mutate  MutateFunc
}

// supports reports whether op implements form. An operation with a computer
// implementation can always run inplace by computing into the target.
func (op *Op) supports(form Form) bool {
	switch form {
	case FormFunction:
		return op.Func != nil
	case FormComputer:
		return op.Compute != nil
	case FormInplace:
		return op.Mutate != nil || op.Compute != nil
	}
	return false
}

func (op *Op) info() Info {
	info := Info{
		Names:       append([]string(nil), op.Names...),
		Description: op.Description,
		Inputs:      append([]Param(nil), op.Inputs...),
		Output:      op.Output,
	}
	for _, f := range []Form{FormFunction, FormComputer, FormInplace} {
		if op.supports(f) {
			info.Forms = append(info.Forms, f)
		}
	}
	return info
}

// Registry is an in-process operation environment. It implements both
// Environment and Dispatcher.
type Registry struct {
	mu     sync.RWMutex
	ops    []*Op
	byName map[string][]*Op
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string][]*Op),
	}
}

// Register adds an operation. Several operations may share a name; dispatch
// tries them in registration order.
func (r *Registry) Register(op Op) error {
	if len(op.Names) == 0 {
		return errors.New("operation has no names")
	}
	for _, n := range op.Names {
		if strings.TrimSpace(n) == "" {
			return errors.New("operation name cannot be empty")
		}
	}
	if op.Func == nil && op.Compute == nil && op.Mutate == nil {
		return fmt.Errorf("operation %s has no implementation", op.Names[0])
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	o := op
	r.ops = append(r.ops, &o)
	for _, n := range o.Names {
		r.byName[n] = append(r.byName[n], &o)
	}
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(op Op) {
	if err := r.Register(op); err != nil {
		panic(err)
	}
}

// Infos implements Environment.
func (r *Registry) Infos(ctx context.Context) ([]Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.ops))
	for _, op := range r.ops {
		infos = append(infos, op.info())
	}
	return infos, nil
}

// Op implements Environment.
func (r *Registry) Op(name string) *Request {
	return NewRequest(r, name)
}

// Help implements Environment.
func (r *Registry) Help(ctx context.Context, name string) (string, error) {
	infos, err := r.Infos(ctx)
	if err != nil {
		return "", err
	}
	return FormatHelp(infos, name)
}

// HelpVerbose implements Environment.
func (r *Registry) HelpVerbose(ctx context.Context, name string) (string, error) {
	infos, err := r.Infos(ctx)
	if err != nil {
		return "", err
	}
	return FormatHelpVerbose(infos, name)
}

// Resolve implements Dispatcher.
func (r *Registry) Resolve(ctx context.Context, call Call) error {
	_, err := r.match(call)
	return err
}

// Dispatch implements Dispatcher.
func (r *Registry) Dispatch(ctx context.Context, call Call) (any, error) {
	op, err := r.match(call)
	if err != nil {
		return nil, err
	}

	switch call.Form {
	case FormComputer:
		if err := op.Compute(ctx, call.Inputs, call.Output); err != nil {
			return nil, failed(call.Name, err)
		}
		return call.Output, nil

	case FormInplace:
		mutate := op.Mutate
		if mutate == nil {
			mutate = MutateFunc(op.Compute)
		}
		if err := mutate(ctx, call.Inputs, call.Output); err != nil {
			return nil, failed(call.Name, err)
		}
		return call.Output, nil

	default:
		v, err := op.Func(ctx, call.Inputs)
		if err != nil {
			return nil, failed(call.Name, err)
		}
		return v, nil
	}
}

func failed(name string, err error) error {
	var oe *Error
	if errors.As(err, &oe) {
		return err
	}
	return NewDispatchError(CodeFailed, name, "operation failed", err)
}

// match selects the first operation registered under call.Name that supports
// the form, takes len(call.Inputs) inputs, and accepts their types.
func (r *Registry) match(call Call) (*Op, error) {
	if !call.Form.Valid() {
		return nil, NewDispatchError(CodeFailed, call.Name, fmt.Sprintf("unknown call form %q", call.Form), nil)
	}

	r.mu.RLock()
	candidates := r.byName[call.Name]
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, NewDispatchError(CodeNotFound, call.Name, "operation not found", nil)
	}
	if call.Form != FormFunction && call.Output == nil {
		return nil, NewDispatchError(CodeTypeMismatch, call.Name,
			fmt.Sprintf("%s form requires an output container", call.Form), nil)
	}

	arityOK := false
	formOK := false
	for _, op := range candidates {
		if !op.supports(call.Form) {
			continue
		}
		formOK = true
		if len(op.Inputs) != len(call.Inputs) {
			continue
		}
		arityOK = true
		if !acceptsAll(op.Inputs, call.Inputs) {
			continue
		}
		if call.Form != FormFunction && !MatchesContainer(op.Output.Type, call.Output) {
			continue
		}
		return op, nil
	}

	switch {
	case !formOK:
		return nil, NewDispatchError(CodeTypeMismatch, call.Name,
			fmt.Sprintf("operation has no %s form", call.Form), nil)
	case !arityOK:
		return nil, NewDispatchError(CodeArity, call.Name,
			fmt.Sprintf("no operation accepts %d inputs", len(call.Inputs)), nil)
	default:
		return nil, NewDispatchError(CodeTypeMismatch, call.Name,
			fmt.Sprintf("no operation accepts inputs (%s)", describeTypes(call.Inputs)), nil)
	}
}

func acceptsAll(params []Param, inputs []any) bool {
	for i, p := range params {
		if !Matches(p.Type, inputs[i]) {
			return false
		}
	}
	return true
}

func describeTypes(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%T", v)
	}
	return strings.Join(parts, ", ")
}
