package ops

import (
	"context"
)

// Form is the calling convention of an operation request.
type Form string

const (
	// FormFunction returns a fresh result.
	FormFunction Form = "function"

	// FormComputer writes the result into a caller-supplied output.
	FormComputer Form = "computer"

	// FormInplace writes the result into a caller-supplied target.
	FormInplace Form = "inplace"
)

// Valid reports whether f is a known form.
func (f Form) Valid() bool {
	switch f {
	case FormFunction, FormComputer, FormInplace:
		return true
	}
	return false
}

// Parameter types understood by the in-process environment.
const (
	TypeAny     = "any"
	TypeNumber  = "number"
	TypeArray   = "array"
	TypeNumeric = "numeric"
	TypeList    = "list"
	TypeString  = "string"
)

// Param describes one operation input or output.
type Param struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Info describes a registered operation.
type Info struct {
	// Names lists every dotted name the operation is reachable by.
	Names []string `json:"names" yaml:"names"`

	// Description is a short human-readable summary.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Inputs lists the operation inputs in order.
	Inputs []Param `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Output describes the result.
	Output Param `json:"output" yaml:"output"`

	// Forms lists the call forms the operation supports.
	Forms []Form `json:"forms,omitempty" yaml:"forms,omitempty"`
}

// Environment is a live operation environment.
type Environment interface {
	// Infos returns every registered operation descriptor.
	Infos(ctx context.Context) ([]Info, error)

	// Op starts a request for the named operation.
	Op(name string) *Request

	// Help returns a summary of one operation, or of all operations when
	// name is empty.
	Help(ctx context.Context, name string) (string, error)

	// HelpVerbose is Help with full descriptor detail.
	HelpVerbose(ctx context.Context, name string) (string, error)
}

// Call is a fully-specified operation request.
type Call struct {
	Name   string `json:"name"`
	Form   Form   `json:"form"`
	Inputs []any  `json:"inputs"`

	// Output is the output container for FormComputer and the mutation
	// target for FormInplace.
	Output any `json:"output,omitempty"`
}

// Dispatcher resolves and executes calls. Environments implement it and
// hand it to the requests they create.
type Dispatcher interface {
	// Resolve checks that some operation matches call without executing it.
	Resolve(ctx context.Context, call Call) error

	// Dispatch executes call and returns its result.
	Dispatch(ctx context.Context, call Call) (any, error)
}

// Executor is a deferred, reusable operation request.
type Executor interface {
	// Name returns the fully-qualified operation name.
	Name() string

	// Kind returns the call form the executor runs.
	Kind() Form

	// Execute runs the request. With no inputs the inputs bound at creation
	// are used; otherwise the given inputs replace them.
	Execute(ctx context.Context, inputs ...any) (any, error)
}

// Names returns the distinct operation names declared by infos, in first-seen order.
func Names(infos []Info) []string {
	seen := make(map[string]bool)
	var names []string
	for _, info := range infos {
		for _, n := range info.Names {
			if seen[n] {
				continue
			}
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}
