package ops

import (
	"context"
	"fmt"
)

// Request builds a call to a named operation.
//
//	sum, err := env.Op("math.add").Input(2, 3).Apply(ctx)
//
// A Request is not safe for concurrent use; build one per call.
type Request struct {
	d      Dispatcher
	name   string
	inputs []any
	output any
}

// NewRequest returns a request for name that dispatches through d.
func NewRequest(d Dispatcher, name string) *Request {
	return &Request{d: d, name: name}
}

// Name returns the operation name.
func (r *Request) Name() string {
	return r.name
}

// Input appends inputs to the request.
func (r *Request) Input(inputs ...any) *Request {
	r.inputs = append(r.inputs, inputs...)
	return r
}

// Output sets the output container used by Compute and Computer.
func (r *Request) Output(out any) *Request {
	r.output = out
	return r
}

func (r *Request) call(form Form, output any) Call {
	return Call{
		Name:   r.name,
		Form:   form,
		Inputs: append([]any(nil), r.inputs...),
		Output: output,
	}
}

// Apply executes the request in function form.
func (r *Request) Apply(ctx context.Context) (any, error) {
	return r.d.Dispatch(ctx, r.call(FormFunction, nil))
}

// Function returns a function-form executor.
func (r *Request) Function(ctx context.Context) (Executor, error) {
	return r.executor(ctx, r.call(FormFunction, nil))
}

// Compute executes the request in computer form, writing into the output
// container, and returns the container.
func (r *Request) Compute(ctx context.Context) (any, error) {
	return r.d.Dispatch(ctx, r.call(FormComputer, r.output))
}

// Computer returns a computer-form executor bound to the output container.
func (r *Request) Computer(ctx context.Context) (Executor, error) {
	return r.executor(ctx, r.call(FormComputer, r.output))
}

// Mutate executes the request in inplace form against target and returns
// the mutated target.
func (r *Request) Mutate(ctx context.Context, target any) (any, error) {
	return r.d.Dispatch(ctx, r.call(FormInplace, target))
}

// Inplace returns an inplace-form executor bound to target.
func (r *Request) Inplace(ctx context.Context, target any) (Executor, error) {
	return r.executor(ctx, r.call(FormInplace, target))
}

func (r *Request) executor(ctx context.Context, call Call) (Executor, error) {
	if err := r.d.Resolve(ctx, call); err != nil {
		return nil, err
	}
	return &executor{d: r.d, call: call}, nil
}

type executor struct {
	d    Dispatcher
	call Call
}

func (e *executor) Name() string { return e.call.Name }

func (e *executor) Kind() Form { return e.call.Form }

func (e *executor) Execute(ctx context.Context, inputs ...any) (any, error) {
	call := e.call
	if len(inputs) > 0 {
		call.Inputs = inputs
	}
	return e.d.Dispatch(ctx, call)
}

func (e *executor) String() string {
	return fmt.Sprintf("<%s %s>", e.call.Form, e.call.Name)
}
