package starbind

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/scijava/opsgate/pkg/gateway"
	"github.com/scijava/opsgate/pkg/ndarray"
	"github.com/scijava/opsgate/pkg/telemetry"
)

// DefaultTimeout bounds a script run when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Evaluator runs Starlark scripts against a gateway. The gateway root is
// bound to the global name "ops".
type Evaluator struct {
	gw      *gateway.Gateway
	timeout time.Duration
	out     io.Writer
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithTimeout bounds each run. Zero keeps DefaultTimeout.
func WithTimeout(d time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithOutput sends print and help output to w.
func WithOutput(w io.Writer) EvaluatorOption {
	return func(e *Evaluator) { e.out = w }
}

// WithLogger sets the logger.
func WithLogger(l *telemetry.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) EvaluatorOption {
	return func(e *Evaluator) { e.metrics = m }
}

// NewEvaluator creates an evaluator bound to gw.
func NewEvaluator(gw *gateway.Gateway, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		gw:      gw,
		timeout: DefaultTimeout,
		out:     io.Discard,
		logger:  telemetry.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.NewComponentLogger("starbind")
	return e
}

// Result is the outcome of a script run. Output holds the script's public
// globals converted to Go values; functions and namespaces are left out.
type Result struct {
	Output        map[string]interface{}
	ExecutionTime time.Duration
	Error         string
}

// Exec runs the script in src. src may be a string, []byte or io.Reader;
// filename is used in error positions. A run exceeding the timeout or
// outliving ctx is cancelled.
func (e *Evaluator) Exec(ctx context.Context, filename string, src interface{}) (*Result, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(e.out, msg)
		},
	}
	thread.SetLocal(contextKey, ctx)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, err := starlark.ExecFile(thread, filename, src, e.predeclared())
	result := &Result{ExecutionTime: time.Since(startTime)}
	if err == nil {
		result.Output, err = convertGlobals(globals)
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("execution timeout after %v: %w", e.timeout, err)
		}
		result.Error = err.Error()
		e.metrics.RecordScriptRun("failure")
		e.logger.WithField("script", filename).WithError(err).Debug("script failed")
		return result, err
	}

	e.metrics.RecordScriptRun("success")
	e.logger.WithField("script", filename).
		WithField("duration", result.ExecutionTime.String()).
		Debug("script finished")
	return result, nil
}

func (e *Evaluator) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"ops":          NewNamespace(e.gw.Root()),
		"struct":       starlark.NewBuiltin("struct", starlarkstruct.Make),
		"help":         starlark.NewBuiltin("help", e.help(false)),
		"help_verbose": starlark.NewBuiltin("help_verbose", e.help(true)),
		"zeros":        starlark.NewBuiltin("zeros", builtinZeros),
		"array":        starlark.NewBuiltin("array", builtinArray),
	}
}

type builtinFunc func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

// help writes help text for an operation name, an op value or, with no
// argument, every operation.
func (e *Evaluator) help(verbose bool) builtinFunc {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var target starlark.Value = starlark.String("")
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name?", &target); err != nil {
			return nil, err
		}

		var name string
		switch t := target.(type) {
		case starlark.String:
			name = string(t)
		case *Op:
			name = t.Name()
		case *Namespace:
			if !t.ns.IsRoot() {
				name = t.ns.Path()
			}
		default:
			return nil, fmt.Errorf("%s: want name or op, got %s", b.Name(), target.Type())
		}

		help := e.gw.Help
		if verbose {
			help = e.gw.HelpVerbose
		}
		if err := help(threadContext(thread), e.out, name); err != nil {
			return nil, err
		}
		return starlark.None, nil
	}
}

func builtinZeros(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		shapeVal starlark.Value
		dtype    = "float64"
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "shape", &shapeVal, "dtype?", &dtype); err != nil {
		return nil, err
	}

	shape, err := toShape(shapeVal)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	dt, err := ndarray.ParseDType(dtype)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	a, err := ndarray.Zeros(shape, dt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return NewArray(a), nil
}

func builtinArray(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		data  starlark.Value
		dtype = "float64"
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "data", &data, "dtype?", &dtype); err != nil {
		return nil, err
	}

	shape, values, err := flatten(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	dt, err := ndarray.ParseDType(dtype)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	a, err := ndarray.New(shape, dt, values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return NewArray(a), nil
}

func toShape(v starlark.Value) ([]int, error) {
	if i, ok := v.(starlark.Int); ok {
		n, ok := i.Int64()
		if !ok || n < 0 {
			return nil, fmt.Errorf("invalid dimension %s", i)
		}
		return []int{int(n)}, nil
	}
	seq, ok := v.(starlark.Indexable)
	if _, isString := v.(starlark.String); !ok || isString {
		return nil, fmt.Errorf("shape must be an int or a sequence of ints, got %s", v.Type())
	}
	shape := make([]int, seq.Len())
	for i := range shape {
		var n int
		if err := starlark.AsInt(seq.Index(i), &n); err != nil {
			return nil, fmt.Errorf("dimension %d: %w", i, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("dimension %d is negative", i)
		}
		shape[i] = n
	}
	return shape, nil
}

func convertGlobals(globals starlark.StringDict) (map[string]interface{}, error) {
	output := make(map[string]interface{})
	for name, val := range globals {
		if strings.HasPrefix(name, "_") {
			continue
		}
		switch val.(type) {
		case starlark.Callable, *Namespace:
			continue
		}
		goVal, err := fromStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert output %s: %w", name, err)
		}
		output[name] = goVal
	}
	return output, nil
}
