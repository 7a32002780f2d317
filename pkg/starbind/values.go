package starbind

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/scijava/opsgate/pkg/ndarray"
	"github.com/scijava/opsgate/pkg/ops"
)

// Array exposes an *ndarray.Array to Starlark. Indexing is by flat index.
type Array struct {
	arr    *ndarray.Array
	frozen bool
}

// NewArray wraps a.
func NewArray(a *ndarray.Array) *Array {
	return &Array{arr: a}
}

// Unwrap returns the wrapped array.
func (a *Array) Unwrap() *ndarray.Array { return a.arr }

var (
	_ starlark.HasAttrs    = (*Array)(nil)
	_ starlark.HasSetIndex = (*Array)(nil)
)

func (a *Array) String() string        { return a.arr.String() }
func (a *Array) Type() string          { return "array" }
func (a *Array) Freeze()               { a.frozen = true }
func (a *Array) Truth() starlark.Bool  { return a.arr.Size() > 0 }
func (a *Array) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: array") }
func (a *Array) Len() int              { return a.arr.Size() }

// Index implements starlark.Indexable.
func (a *Array) Index(i int) starlark.Value {
	return starlark.Float(a.arr.Flat(i))
}

// SetIndex implements starlark.HasSetIndex.
func (a *Array) SetIndex(i int, v starlark.Value) error {
	if a.frozen {
		return fmt.Errorf("cannot assign to element of frozen array")
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return fmt.Errorf("array element must be a number, got %s", v.Type())
	}
	a.arr.SetFlat(i, f)
	return nil
}

var arrayMethods = map[string]*starlark.Builtin{
	"tolist": starlark.NewBuiltin("tolist", arrayToList),
	"fill":   starlark.NewBuiltin("fill", arrayFill),
	"copy":   starlark.NewBuiltin("copy", arrayCopy),
}

// Attr implements starlark.HasAttrs.
func (a *Array) Attr(name string) (starlark.Value, error) {
	switch name {
	case "shape":
		shape := a.arr.Shape()
		t := make(starlark.Tuple, len(shape))
		for i, s := range shape {
			t[i] = starlark.MakeInt(s)
		}
		return t, nil
	case "dtype":
		return starlark.String(a.arr.DType()), nil
	case "size":
		return starlark.MakeInt(a.arr.Size()), nil
	case "ndim":
		return starlark.MakeInt(a.arr.NDim()), nil
	}
	if m, ok := arrayMethods[name]; ok {
		return m.BindReceiver(a), nil
	}
	return nil, nil
}

// AttrNames implements starlark.HasAttrs.
func (a *Array) AttrNames() []string {
	names := []string{"dtype", "ndim", "shape", "size"}
	for name := range arrayMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func arrayToList(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	a := b.Receiver().(*Array).arr
	if a.NDim() == 0 {
		return starlark.Float(a.Flat(0)), nil
	}
	data := a.Data()
	var build func(shape []int, offset int) (starlark.Value, int)
	build = func(shape []int, offset int) (starlark.Value, int) {
		elems := make([]starlark.Value, shape[0])
		for i := range elems {
			if len(shape) == 1 {
				elems[i] = starlark.Float(data[offset])
				offset++
				continue
			}
			elems[i], offset = build(shape[1:], offset)
		}
		return starlark.NewList(elems), offset
	}
	list, _ := build(a.Shape(), 0)
	return list, nil
}

func arrayFill(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	recv := b.Receiver().(*Array)
	if recv.frozen {
		return nil, fmt.Errorf("%s: array is frozen", b.Name())
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return nil, fmt.Errorf("%s: want number, got %s", b.Name(), v.Type())
	}
	recv.arr.Fill(f)
	return starlark.None, nil
}

func arrayCopy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return NewArray(b.Receiver().(*Array).arr.Copy()), nil
}

// toStarlarkValue converts an operation result to Starlark. Maps become
// dicts with sorted keys.
func toStarlarkValue(v any) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return val, nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case *float64:
		return starlark.Float(*val), nil
	case string:
		return starlark.String(val), nil
	case *ndarray.Array:
		return NewArray(val), nil
	case ops.Executor:
		return &Executor{exec: val}, nil
	case []float64:
		return listOf(val, func(f float64) (starlark.Value, error) { return starlark.Float(f), nil })
	case []any:
		return listOf(val, toStarlarkValue)
	case map[string]any:
		dict := starlark.NewDict(len(val))
		for _, k := range slices.Sorted(maps.Keys(val)) {
			item, err := toStarlarkValue(val[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), item); err != nil {
				return nil, err
			}
		}
		return dict, nil
	}
	return nil, fmt.Errorf("cannot convert %T to a Starlark value", v)
}

func listOf[T any](items []T, conv func(T) (starlark.Value, error)) (starlark.Value, error) {
	elems := make([]starlark.Value, len(items))
	for i, item := range items {
		elem, err := conv(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		elems[i] = elem
	}
	return starlark.NewList(elems), nil
}

// fromStarlarkValue converts a script value to an operation input. Arrays
// and executors are unwrapped, integers become int64, and structs become
// string-keyed maps.
func fromStarlarkValue(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		if i, ok := val.Int64(); ok {
			return i, nil
		}
		return nil, fmt.Errorf("integer %s overflows int64", val)
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *Array:
		return val.arr, nil
	case *Executor:
		return val.exec, nil
	case starlark.Tuple:
		return fromSequence(val)
	case *starlark.List:
		return fromSequence(val)
	case *starlark.Dict:
		m := make(map[string]any, val.Len())
		for _, kv := range val.Items() {
			key, ok := starlark.AsString(kv[0])
			if !ok {
				return nil, fmt.Errorf("dict key %s is not a string", kv[0])
			}
			item, err := fromStarlarkValue(kv[1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			m[key] = item
		}
		return m, nil
	case *starlarkstruct.Struct:
		fields := make(starlark.StringDict)
		val.ToStringDict(fields)
		m := make(map[string]any, len(fields))
		for name, field := range fields {
			item, err := fromStarlarkValue(field)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			m[name] = item
		}
		return m, nil
	}
	return nil, fmt.Errorf("cannot convert %s to an operation value", v.Type())
}

func fromSequence(seq starlark.Indexable) ([]any, error) {
	items := make([]any, seq.Len())
	for i := range items {
		item, err := fromStarlarkValue(seq.Index(i))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		items[i] = item
	}
	return items, nil
}

// flatten reads a rectangular nested list of numbers into its shape and
// row-major data.
func flatten(v starlark.Value) ([]int, []float64, error) {
	if f, ok := starlark.AsFloat(v); ok {
		return []int{}, []float64{f}, nil
	}
	seq, ok := v.(starlark.Indexable)
	if _, isString := v.(starlark.String); !ok || isString {
		return nil, nil, fmt.Errorf("want number or list, got %s", v.Type())
	}
	if seq.Len() == 0 {
		return []int{0}, []float64{}, nil
	}

	var (
		inner []int
		data  []float64
	)
	for i := 0; i < seq.Len(); i++ {
		shape, d, err := flatten(seq.Index(i))
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			inner = shape
		} else if !slices.Equal(shape, inner) {
			return nil, nil, fmt.Errorf("ragged nested list: element %d has shape %v, want %v", i, shape, inner)
		}
		data = append(data, d...)
	}
	return append([]int{seq.Len()}, inner...), data, nil
}
