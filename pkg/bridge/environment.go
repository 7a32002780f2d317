package bridge

import (
	"context"
	"fmt"
	"slices"

	"github.com/scijava/opsgate/pkg/ops"
	"github.com/scijava/opsgate/pkg/telemetry"
)

// Environment is the operation environment backed by instantiated modules.
// A name is routed to the first module that declares it.
type Environment struct {
	modules []*Module
	infos   []ops.Info
	owner   map[string]*Module
	forms   map[string][]ops.Form
	logger  *telemetry.Logger
}

func newEnvironment(ctx context.Context, modules []*Module, logger *telemetry.Logger) (*Environment, error) {
	env := &Environment{
		modules: modules,
		owner:   make(map[string]*Module),
		forms:   make(map[string][]ops.Form),
		logger:  logger,
	}
	for _, m := range modules {
		infos, err := m.Infos(ctx)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", m.Name(), err)
		}
		for _, info := range infos {
			for _, name := range info.Names {
				if prev, ok := env.owner[name]; ok && prev != m {
					logger.WithModule(m.Name()).WithOperation(name).
						Debugf("operation already provided by %s", prev.Name())
					continue
				}
				env.owner[name] = m
				env.forms[name] = append(env.forms[name], info.Forms...)
			}
		}
		env.infos = append(env.infos, infos...)
	}
	return env, nil
}

// Modules returns the coordinates of the loaded modules in load order.
func (e *Environment) Modules() []string {
	names := make([]string, len(e.modules))
	for i, m := range e.modules {
		names[i] = m.Name()
	}
	return names
}

// Infos implements ops.Environment.
func (e *Environment) Infos(context.Context) ([]ops.Info, error) {
	return slices.Clone(e.infos), nil
}

// Op implements ops.Environment.
func (e *Environment) Op(name string) *ops.Request {
	return ops.NewRequest(e, name)
}

// Help implements ops.Environment.
func (e *Environment) Help(_ context.Context, name string) (string, error) {
	return ops.FormatHelp(e.infos, name)
}

// HelpVerbose implements ops.Environment.
func (e *Environment) HelpVerbose(_ context.Context, name string) (string, error) {
	return ops.FormatHelpVerbose(e.infos, name)
}

// Resolve implements ops.Dispatcher. Modules type-check their own inputs, so
// only the name and the owning module's forms are checked here.
func (e *Environment) Resolve(_ context.Context, call ops.Call) error {
	if _, ok := e.owner[call.Name]; !ok {
		return ops.NewDispatchError(ops.CodeNotFound, call.Name, "no operation named "+call.Name, nil)
	}
	if !call.Form.Valid() {
		return ops.NewDispatchError(ops.CodeFailed, call.Name, fmt.Sprintf("invalid form %q", call.Form), nil)
	}
	if slices.Contains(e.forms[call.Name], call.Form) {
		return nil
	}
	return ops.NewDispatchError(ops.CodeTypeMismatch, call.Name,
		fmt.Sprintf("no %s form of %s", call.Form, call.Name), nil)
}

// Dispatch implements ops.Dispatcher. Computer and inplace results are copied
// into the caller's output container, which is returned.
func (e *Environment) Dispatch(ctx context.Context, call ops.Call) (any, error) {
	if err := e.Resolve(ctx, call); err != nil {
		return nil, err
	}
	if call.Form != ops.FormFunction && call.Output == nil {
		return nil, ops.NewDispatchError(ops.CodeTypeMismatch, call.Name, "missing output container", nil)
	}

	value, err := e.owner[call.Name].Call(ctx, call)
	if err != nil {
		return nil, err
	}
	if call.Form == ops.FormFunction {
		return value, nil
	}
	if err := ops.Store(call.Output, value); err != nil {
		return nil, ops.NewDispatchError(ops.CodeTypeMismatch, call.Name, "cannot store result", err)
	}
	return call.Output, nil
}
