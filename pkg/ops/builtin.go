package ops

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/scijava/opsgate/pkg/ndarray"
)

// NewBuiltinRegistry returns a registry holding the built-in operations.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	registerMath(r)
	registerStats(r)
	registerImage(r)

	r.MustRegister(Op{
		Names:       []string{"identity"},
		Description: "Returns its input unchanged.",
		Inputs:      []Param{{Name: "input", Type: TypeAny}},
		Output:      Param{Name: "output", Type: TypeAny},
		Func: func(_ context.Context, in []any) (any, error) {
			return in[0], nil
		},
	})
	return r
}

// elementwise wraps a scalar function as an operation over numbers and arrays.
// The three forms share one implementation; computer and inplace store the
// function result into the container.
func elementwise(names []string, desc string, inputs []Param, fn func(in []any) (any, error)) Op {
	compute := func(_ context.Context, in []any, out any) error {
		v, err := fn(in)
		if err != nil {
			return err
		}
		return Store(out, v)
	}
	return Op{
		Names:       names,
		Description: desc,
		Inputs:      inputs,
		Output:      Param{Name: "output", Type: TypeNumeric},
		Func: func(_ context.Context, in []any) (any, error) {
			return fn(in)
		},
		Compute: compute,
		Mutate:  compute,
	}
}

func registerMath(r *Registry) {
	binary := []struct {
		name string
		desc string
		fn   func(a, b float64) float64
	}{
		{"math.add", "Adds two numbers or arrays element-wise.", func(a, b float64) float64 { return a + b }},
		{"math.sub", "Subtracts the second operand from the first element-wise.", func(a, b float64) float64 { return a - b }},
		{"math.mul", "Multiplies two numbers or arrays element-wise.", func(a, b float64) float64 { return a * b }},
		{"math.div", "Divides the first operand by the second element-wise.", func(a, b float64) float64 { return a / b }},
	}
	for _, b := range binary {
		fn := b.fn
		r.MustRegister(elementwise(
			[]string{b.name},
			b.desc,
			[]Param{{Name: "in1", Type: TypeNumeric}, {Name: "in2", Type: TypeNumeric}},
			func(in []any) (any, error) { return applyBinary(in[0], in[1], fn) },
		))
	}

	unary := []struct {
		names []string
		desc  string
		fn    func(float64) float64
	}{
		{[]string{"math.sqrt"}, "Square root, element-wise.", math.Sqrt},
		{[]string{"math.abs", "math.absolute"}, "Absolute value, element-wise.", math.Abs},
	}
	for _, u := range unary {
		fn := u.fn
		r.MustRegister(elementwise(
			u.names,
			u.desc,
			[]Param{{Name: "input", Type: TypeNumeric}},
			func(in []any) (any, error) { return applyUnary(in[0], fn), nil },
		))
	}
}

func applyUnary(v any, fn func(float64) float64) any {
	if a, ok := v.(*ndarray.Array); ok {
		out := a.Copy()
		for i := 0; i < out.Size(); i++ {
			out.SetFlat(i, fn(a.Flat(i)))
		}
		return out
	}
	f, _ := ToFloat(v)
	return fn(f)
}

func applyBinary(x, y any, fn func(a, b float64) float64) (any, error) {
	ax, xArr := x.(*ndarray.Array)
	ay, yArr := y.(*ndarray.Array)

	switch {
	case xArr && yArr:
		if !ax.SameShape(ay) {
			return nil, fmt.Errorf("shape mismatch: %v vs %v", ax.Shape(), ay.Shape())
		}
		out := ax.Copy()
		for i := 0; i < out.Size(); i++ {
			out.SetFlat(i, fn(ax.Flat(i), ay.Flat(i)))
		}
		return out, nil
	case xArr:
		f, _ := ToFloat(y)
		out := ax.Copy()
		for i := 0; i < out.Size(); i++ {
			out.SetFlat(i, fn(ax.Flat(i), f))
		}
		return out, nil
	case yArr:
		f, _ := ToFloat(x)
		out := ay.Copy()
		for i := 0; i < out.Size(); i++ {
			out.SetFlat(i, fn(f, ay.Flat(i)))
		}
		return out, nil
	}

	a, _ := ToFloat(x)
	b, _ := ToFloat(y)
	return fn(a, b), nil
}

func registerStats(r *Registry) {
	reducers := []struct {
		name string
		desc string
		fn   func([]float64) (float64, error)
	}{
		{"stats.sum", "Sum of all elements.", func(d []float64) (float64, error) {
			return floats.Sum(d), nil
		}},
		{"stats.mean", "Arithmetic mean of all elements.", func(d []float64) (float64, error) {
			if len(d) == 0 {
				return 0, errors.New("mean of empty array")
			}
			return stat.Mean(d, nil), nil
		}},
		{"stats.min", "Smallest element.", func(d []float64) (float64, error) {
			if len(d) == 0 {
				return 0, errors.New("min of empty array")
			}
			return floats.Min(d), nil
		}},
		{"stats.max", "Largest element.", func(d []float64) (float64, error) {
			if len(d) == 0 {
				return 0, errors.New("max of empty array")
			}
			return floats.Max(d), nil
		}},
	}

	for _, red := range reducers {
		fn := red.fn
		reduce := func(in []any) (float64, error) {
			return fn(in[0].(*ndarray.Array).Data())
		}
		r.MustRegister(Op{
			Names:       []string{red.name},
			Description: red.desc,
			Inputs:      []Param{{Name: "input", Type: TypeArray}},
			Output:      Param{Name: "output", Type: TypeNumber},
			Func: func(_ context.Context, in []any) (any, error) {
				return reduce(in)
			},
			Compute: func(_ context.Context, in []any, out any) error {
				v, err := reduce(in)
				if err != nil {
					return err
				}
				return Store(out, v)
			},
		})
	}
}

func registerImage(r *Registry) {
	invert := func(in []any) (any, error) {
		a := in[0].(*ndarray.Array)
		d := a.Data()
		if len(d) == 0 {
			return a.Copy(), nil
		}
		lo, hi := floats.Min(d), floats.Max(d)
		return applyUnary(a, func(v float64) float64 { return lo + hi - v }), nil
	}
	r.MustRegister(Op{
		Names:       []string{"image.invert"},
		Description: "Inverts an image about the midpoint of its value range.",
		Inputs:      []Param{{Name: "input", Type: TypeArray}},
		Output:      Param{Name: "output", Type: TypeArray},
		Func: func(_ context.Context, in []any) (any, error) {
			return invert(in)
		},
		Compute: func(_ context.Context, in []any, out any) error {
			v, err := invert(in)
			if err != nil {
				return err
			}
			return Store(out, v)
		},
	})

	r.MustRegister(Op{
		Names:       []string{"image.fill"},
		Description: "Sets every element of the target to a value.",
		Inputs:      []Param{{Name: "value", Type: TypeNumber}},
		Output:      Param{Name: "target", Type: TypeArray},
		Mutate: func(_ context.Context, in []any, target any) error {
			f, _ := ToFloat(in[0])
			target.(*ndarray.Array).Fill(f)
			return nil
		},
	})

	createImg := func(shape any, dtype string) (any, error) {
		dims, _ := ToFloats(shape)
		s := make([]int, len(dims))
		for i, d := range dims {
			s[i] = int(d)
		}
		dt, err := ndarray.ParseDType(dtype)
		if err != nil {
			return nil, err
		}
		return ndarray.Zeros(s, dt)
	}
	r.MustRegister(Op{
		Names:       []string{"create.img", "create.image"},
		Description: "Creates a zero-filled float64 image of the given shape.",
		Inputs:      []Param{{Name: "shape", Type: TypeList}},
		Output:      Param{Name: "image", Type: TypeArray},
		Func: func(_ context.Context, in []any) (any, error) {
			return createImg(in[0], "")
		},
	})
	r.MustRegister(Op{
		Names:       []string{"create.img", "create.image"},
		Description: "Creates a zero-filled image of the given shape and element type.",
		Inputs:      []Param{{Name: "shape", Type: TypeList}, {Name: "dtype", Type: TypeString}},
		Output:      Param{Name: "image", Type: TypeArray},
		Func: func(_ context.Context, in []any) (any, error) {
			return createImg(in[0], in[1].(string))
		},
	})

	r.MustRegister(Op{
		Names:       []string{"copy.img"},
		Description: "Copies an image.",
		Inputs:      []Param{{Name: "input", Type: TypeArray}},
		Output:      Param{Name: "output", Type: TypeArray},
		Func: func(_ context.Context, in []any) (any, error) {
			return in[0].(*ndarray.Array).Copy(), nil
		},
		Compute: func(_ context.Context, in []any, out any) error {
			return Store(out, in[0])
		},
	})

	r.MustRegister(Op{
		Names:       []string{"geom.size"},
		Description: "Number of elements in an image.",
		Inputs:      []Param{{Name: "input", Type: TypeArray}},
		Output:      Param{Name: "size", Type: TypeNumber},
		Func: func(_ context.Context, in []any) (any, error) {
			return float64(in[0].(*ndarray.Array).Size()), nil
		},
	})
}
