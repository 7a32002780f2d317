package gateway

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/scijava/opsgate/pkg/ndarray"
	"github.com/scijava/opsgate/pkg/ops"
)

// recordingEnv is an environment that records every call it receives.
type recordingEnv struct {
	infos      []ops.Info
	resolved   []ops.Call
	dispatched []ops.Call
	err        error
}

func newRecordingEnv(names ...string) *recordingEnv {
	env := &recordingEnv{}
	for _, n := range names {
		env.infos = append(env.infos, ops.Info{Names: []string{n}})
	}
	return env
}

func (e *recordingEnv) Infos(context.Context) ([]ops.Info, error) { return e.infos, e.err }

func (e *recordingEnv) Op(name string) *ops.Request { return ops.NewRequest(e, name) }

func (e *recordingEnv) Help(_ context.Context, name string) (string, error) {
	return "help " + name, nil
}

func (e *recordingEnv) HelpVerbose(_ context.Context, name string) (string, error) {
	if name == "" {
		return "verbose all", nil
	}
	return "verbose " + name, nil
}

func (e *recordingEnv) Resolve(_ context.Context, call ops.Call) error {
	e.resolved = append(e.resolved, call)
	return nil
}

func (e *recordingEnv) Dispatch(_ context.Context, call ops.Call) (any, error) {
	e.dispatched = append(e.dispatched, call)
	return string(call.Form) + " result", nil
}

func (e *recordingEnv) last() ops.Call {
	return e.dispatched[len(e.dispatched)-1]
}

func TestBuildTree(t *testing.T) {
	gw, err := Build(context.Background(), newRecordingEnv("math.add", "math.mul", "filter"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	math := gw.Namespace("math")
	if math == nil {
		t.Fatal("namespace math missing")
	}
	if math.Path() != "math" || gw.Root().Path() != GlobalPath {
		t.Errorf("paths = %q, %q", math.Path(), gw.Root().Path())
	}
	for _, leaf := range []string{"add", "mul"} {
		op := math.Op(leaf)
		if op == nil {
			t.Fatalf("math.%s missing", leaf)
		}
		if op.Name() != "math."+leaf || op.Namespace() != "math" || op.Leaf() != leaf {
			t.Errorf("op = %q in %q", op.Name(), op.Namespace())
		}
	}
	if op := gw.Op("filter"); op == nil || op.Name() != "filter" {
		t.Errorf("global op filter = %v", op)
	}

	// Namespaces are not callable.
	if gw.Op("math") != nil {
		t.Error("namespace math is bound as an operation")
	}
	if m, _ := gw.Get("math"); m == nil {
		t.Error("Get(math) found nothing")
	} else if _, isOp := m.(*Op); isOp {
		t.Error("Get(math) returned an operation")
	}

	want := []string{"filter", "math.add", "math.mul"}
	if !slices.Equal(gw.OpNames(), want) {
		t.Errorf("OpNames() = %v, want %v", gw.OpNames(), want)
	}
}

func TestBuildDeepNames(t *testing.T) {
	names := []string{"features.haralick.asm", "features.haralick.contrast", "features.hu.moment1", "stats.mean"}
	gw, err := Build(context.Background(), newRecordingEnv(names...))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	for _, name := range names {
		op, err := gw.Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", name, err)
		}
		if op.Name() != name {
			t.Errorf("Resolve(%q).Name() = %q", name, op.Name())
		}
	}

	haralick := gw.Namespace("features").Namespace("haralick")
	if haralick.Path() != "features.haralick" {
		t.Errorf("Path() = %q", haralick.Path())
	}
	if !slices.Equal(gw.Namespace("features").Names(), []string{"haralick", "hu"}) {
		t.Errorf("features children = %v", gw.Namespace("features").Names())
	}
	if _, err := gw.Resolve("features.nope.asm"); !errors.Is(err, ops.ErrOpNotFound) {
		t.Errorf("Resolve(unknown) error = %v", err)
	}
}

func TestBuildSkipsInvalidAndConflictingNames(t *testing.T) {
	env := newRecordingEnv("a..b", ".x", "y.", "", "ok", "x.a", "x.a.b", "dup.op")
	env.infos = append(env.infos, ops.Info{Names: []string{"dup.op", "dup.alias"}})

	gw, err := Build(context.Background(), env)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := []string{"dup.alias", "dup.op", "ok", "x.a"}
	if !slices.Equal(gw.OpNames(), want) {
		t.Errorf("OpNames() = %v, want %v", gw.OpNames(), want)
	}
	if gw.Namespace("x").Op("a") == nil {
		t.Error("first writer x.a was replaced")
	}
}

func TestNamespaceNamedGlobal(t *testing.T) {
	env := newRecordingEnv("global.x", "global.a.b", "x")
	gw, err := Build(context.Background(), env)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	global := gw.Namespace("global")
	if global == nil || global.IsRoot() || !gw.Root().IsRoot() {
		t.Fatalf("namespace global = %v, root flags wrong", global)
	}
	if got := global.Op("x").Name(); got != "global.x" {
		t.Errorf("global.x qualified as %q", got)
	}
	if got := global.Namespace("a").Op("b").Name(); got != "global.a.b" {
		t.Errorf("global.a.b qualified as %q", got)
	}
	if got := gw.Op("x").Name(); got != "x" {
		t.Errorf("root x qualified as %q", got)
	}

	if _, err := global.Op("x").Call(context.Background(), []any{1}); err != nil {
		t.Fatal(err)
	}
	if env.last().Name != "global.x" {
		t.Errorf("dispatched %q, want global.x", env.last().Name)
	}
}

func TestBaseNamespaceBeatsGlobalOp(t *testing.T) {
	gw, err := Build(context.Background(), newRecordingEnv("a", "a.b", "c"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if gw.Namespace("a") == nil || gw.Op("a") != nil {
		t.Fatal("base namespace a should win over the global operation a")
	}
	want := []string{"a.b", "c"}
	if !slices.Equal(gw.OpNames(), want) {
		t.Errorf("OpNames() = %v, want %v", gw.OpNames(), want)
	}
}

func TestBuildEmptyRegistry(t *testing.T) {
	gw, err := Build(context.Background(), newRecordingEnv())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(gw.OpNames()) != 0 || len(gw.Root().Names()) != 0 {
		t.Errorf("empty registry produced %v", gw.Root().Names())
	}
}

func TestBuildEnumerationError(t *testing.T) {
	env := newRecordingEnv()
	env.err = errors.New("registry unavailable")
	if _, err := Build(context.Background(), env); err == nil {
		t.Error("Build() should fail when enumeration fails")
	}
}

func TestAttachIsIdempotent(t *testing.T) {
	env := newRecordingEnv()
	root := newRoot(env, &instruments{})

	ns1, ok1 := attachNamespace(root, env, "math")
	ns2, ok2 := attachNamespace(root, env, "math")
	if !ok1 || !ok2 || ns1 != ns2 {
		t.Error("attachNamespace() replaced an existing namespace")
	}

	op1 := attachOperation(ns1, env, "add")
	op2 := attachOperation(ns1, env, "add")
	if op1 != op2 {
		t.Error("attachOperation() replaced an existing operation")
	}

	if m := attachOperation(root, env, "math"); m != Member(ns1) {
		t.Error("attachOperation() replaced a namespace")
	}
	if _, ok := attachNamespace(ns1, env, "add"); ok {
		t.Error("attachNamespace() over an operation should report a conflict")
	}
	if ns1.Op("add") != op1 {
		t.Error("operation binding changed")
	}
	if !slices.Equal(root.Names(), []string{"math"}) {
		t.Errorf("Names() = %v", root.Names())
	}
}

func TestCallPrecedence(t *testing.T) {
	target := ndarray.FromSlice([]float64{1})
	container := ndarray.FromSlice([]float64{2})
	var nilArray *ndarray.Array

	tests := []struct {
		name       string
		opts       []CallOption
		wantForm   ops.Form
		wantOutput any
	}{
		{"neither", nil, ops.FormFunction, nil},
		{"out only", []CallOption{Out(container)}, ops.FormComputer, container},
		{"inplace only", []CallOption{Inplace(target)}, ops.FormInplace, target},
		{"inplace wins", []CallOption{Out(container), Inplace(target)}, ops.FormInplace, target},
		{"nil inplace is absent", []CallOption{Inplace(nil), Out(container)}, ops.FormComputer, container},
		{"typed nil out is absent", []CallOption{Out(nilArray)}, ops.FormFunction, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newRecordingEnv("math.add")
			gw, err := Build(context.Background(), env)
			if err != nil {
				t.Fatal(err)
			}
			op := gw.Namespace("math").Op("add")

			got, err := op.Call(context.Background(), []any{2, 3}, tt.opts...)
			if err != nil {
				t.Fatalf("Call() error = %v", err)
			}
			call := env.last()
			if call.Form != tt.wantForm || call.Name != "math.add" {
				t.Errorf("dispatched %s %s, want %s", call.Form, call.Name, tt.wantForm)
			}
			if call.Output != tt.wantOutput {
				t.Errorf("output = %v, want %v", call.Output, tt.wantOutput)
			}
			if !slices.Equal(call.Inputs, []any{2, 3}) {
				t.Errorf("inputs = %v", call.Inputs)
			}
			if got != string(tt.wantForm)+" result" {
				t.Errorf("Call() = %v", got)
			}

			// The deferred form resolves without dispatching.
			n := len(env.dispatched)
			res, err := op.Call(context.Background(), []any{2, 3}, append(tt.opts, Run(false))...)
			if err != nil {
				t.Fatalf("Call(run=false) error = %v", err)
			}
			exec, ok := res.(ops.Executor)
			if !ok {
				t.Fatalf("Call(run=false) = %T, want ops.Executor", res)
			}
			if len(env.dispatched) != n {
				t.Error("Call(run=false) dispatched the operation")
			}
			if exec.Kind() != tt.wantForm || exec.Name() != "math.add" {
				t.Errorf("executor = %s %s", exec.Kind(), exec.Name())
			}
			if env.resolved[len(env.resolved)-1].Form != tt.wantForm {
				t.Errorf("resolved form = %s", env.resolved[len(env.resolved)-1].Form)
			}
			if _, err := exec.Execute(context.Background()); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if env.last().Form != tt.wantForm {
				t.Errorf("executed form = %s", env.last().Form)
			}
		})
	}
}

func TestOpsCaptureTheirOwnNames(t *testing.T) {
	names := []string{"a.one", "a.two", "b.three", "four"}
	env := newRecordingEnv(names...)
	gw, err := Build(context.Background(), env)
	if err != nil {
		t.Fatal(err)
	}

	var bound []*Op
	for _, name := range names {
		op, err := gw.Resolve(name)
		if err != nil {
			t.Fatal(err)
		}
		bound = append(bound, op)
	}
	for i, op := range bound {
		if _, err := op.Call(context.Background(), nil); err != nil {
			t.Fatal(err)
		}
		if got := env.last().Name; got != names[i] {
			t.Errorf("op %d dispatched %q, want %q", i, got, names[i])
		}
	}
}

func TestFreshGatewayPerBuild(t *testing.T) {
	env := newRecordingEnv("math.add")
	g1, _ := Build(context.Background(), env)
	g2, _ := Build(context.Background(), env)
	if g1.ID() == g2.ID() || g1.Root() == g2.Root() {
		t.Error("builds share state")
	}
	if g1.Namespace("math").Op("add") == g2.Namespace("math").Op("add") {
		t.Error("builds share operations")
	}
}

func TestBuiltinDispatch(t *testing.T) {
	ctx := context.Background()
	gw, err := Init(ctx, StaticRuntime(ops.NewBuiltinRegistry()))
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	add := gw.Namespace("math").Op("add")

	got, err := add.Call(ctx, []any{2, 3})
	if err != nil || got != 5.0 {
		t.Fatalf("math.add(2, 3) = %v, %v", got, err)
	}

	exec, err := add.Executor(ctx, []any{2, 3})
	if err != nil {
		t.Fatalf("Executor() error = %v", err)
	}
	if got, _ := exec.Execute(ctx); got != 5.0 {
		t.Errorf("Execute() = %v, want 5", got)
	}
	if got, _ := exec.Execute(ctx, 10, 1); got != 11.0 {
		t.Errorf("Execute(10, 1) = %v, want 11", got)
	}

	img := ndarray.FromSlice([]float64{0, 5, 10})
	if _, err := gw.Call(ctx, "image.invert", []any{img}, Inplace(img)); err != nil {
		t.Fatalf("image.invert inplace error = %v", err)
	}
	if !slices.Equal(img.Data(), []float64{10, 5, 0}) {
		t.Errorf("inverted = %v", img.Data())
	}

	if got, _ := gw.Op("identity").Call(ctx, []any{"x"}); got != "x" {
		t.Errorf("identity = %v", got)
	}
}

func TestDispatchErrorsPropagateUnchanged(t *testing.T) {
	ctx := context.Background()
	reg := ops.NewBuiltinRegistry()
	gw, err := Build(ctx, reg)
	if err != nil {
		t.Fatal(err)
	}

	_, want := reg.Op("math.add").Input(1).Apply(ctx)
	_, got := gw.Namespace("math").Op("add").Call(ctx, []any{1})
	if !errors.Is(got, ops.ErrArity) || !errors.Is(got, ops.ErrDispatch) {
		t.Fatalf("error = %v, want arity dispatch error", got)
	}
	if got.Error() != want.Error() {
		t.Errorf("error = %q, want %q", got, want)
	}

	_, err = gw.Namespace("math").Op("add").Call(ctx, []any{"a", "b"}, Run(false))
	if !errors.Is(err, ops.ErrTypeMismatch) {
		t.Errorf("deferred error = %v, want type mismatch", err)
	}
}

type fakeRuntime struct {
	started  bool
	startErr error
	starts   int
	env      ops.Environment
}

func (r *fakeRuntime) Started() bool { return r.started }

func (r *fakeRuntime) Start(context.Context) error {
	r.starts++
	if r.startErr != nil {
		return r.startErr
	}
	r.started = true
	return nil
}

func (r *fakeRuntime) Environment(context.Context) (ops.Environment, error) {
	return r.env, nil
}

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("starts runtime once", func(t *testing.T) {
		rt := &fakeRuntime{env: newRecordingEnv("x.y")}
		if _, err := Init(ctx, rt); err != nil {
			t.Fatal(err)
		}
		if _, err := Init(ctx, rt); err != nil {
			t.Fatal(err)
		}
		if rt.starts != 1 {
			t.Errorf("Start called %d times, want 1", rt.starts)
		}
	})

	t.Run("start failure", func(t *testing.T) {
		cause := errors.New("dependency resolution failed")
		rt := &fakeRuntime{startErr: cause}
		gw, err := Init(ctx, rt)
		if gw != nil {
			t.Error("Init() returned a gateway on failure")
		}
		if !errors.Is(err, ops.ErrRuntimeStart) || !errors.Is(err, cause) {
			t.Errorf("Init() error = %v, want runtime start error wrapping cause", err)
		}
	})
}

func TestHelp(t *testing.T) {
	ctx := context.Background()
	gw, _ := Build(ctx, newRecordingEnv("math.add"))

	tests := []struct {
		name    string
		verbose bool
		arg     string
		want    string
	}{
		{"all", false, "", "help \n"},
		{"one", false, "math.add", "help math.add\n"},
		{"verbose one", true, "math.add", "verbose math.add\n"},
		{"verbose all", true, "", "verbose all\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			var err error
			if tt.verbose {
				err = gw.HelpVerbose(ctx, &buf, tt.arg)
			} else {
				err = gw.Help(ctx, &buf, tt.arg)
			}
			if err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}

	gw, _ = Build(ctx, ops.NewBuiltinRegistry())
	if err := gw.Help(ctx, &bytes.Buffer{}, "math.nope"); !errors.Is(err, ops.ErrOpNotFound) {
		t.Errorf("Help(unknown) error = %v", err)
	}
}

func TestParseOpName(t *testing.T) {
	tests := []struct {
		in      string
		ns      []string
		leaf    string
		wantErr bool
	}{
		{"add", nil, "add", false},
		{"math.add", []string{"math"}, "add", false},
		{"features.haralick.asm", []string{"features", "haralick"}, "asm", false},
		{"", nil, "", true},
		{"a..b", nil, "", true},
		{".a", nil, "", true},
		{"a.", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n, err := ParseOpName(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOpName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !slices.Equal(n.Namespace, tt.ns) {
				t.Errorf("Namespace = %v, want %v", n.Namespace, tt.ns)
			}
			if n.Leaf != tt.leaf || n.String() != tt.in {
				t.Errorf("Leaf = %q, String() = %q", n.Leaf, n.String())
			}
		})
	}
}
