package ops

import (
	"fmt"

	"github.com/scijava/opsgate/pkg/ndarray"
)

// Matches reports whether v is acceptable for a parameter of type typ.
func Matches(typ string, v any) bool {
	switch typ {
	case "", TypeAny:
		return true
	case TypeNumber:
		_, ok := ToFloat(v)
		return ok
	case TypeArray:
		a, ok := v.(*ndarray.Array)
		return ok && a != nil
	case TypeNumeric:
		return Matches(TypeNumber, v) || Matches(TypeArray, v)
	case TypeList:
		_, ok := ToFloats(v)
		return ok
	case TypeString:
		_, ok := v.(string)
		return ok
	}
	return false
}

// MatchesContainer reports whether v can receive a result of type typ.
// Arrays are received by *ndarray.Array, numbers by *float64.
func MatchesContainer(typ string, v any) bool {
	switch typ {
	case TypeArray:
		return Matches(TypeArray, v)
	case TypeNumber:
		p, ok := v.(*float64)
		return ok && p != nil
	case TypeNumeric:
		return MatchesContainer(TypeArray, v) || MatchesContainer(TypeNumber, v)
	case "", TypeAny:
		return v != nil
	}
	return false
}

// ToFloat converts a Go numeric value to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// ToFloats converts a list of numbers to []float64.
func ToFloats(v any) ([]float64, bool) {
	switch l := v.(type) {
	case []float64:
		return l, true
	case []int:
		out := make([]float64, len(l))
		for i, n := range l {
			out[i] = float64(n)
		}
		return out, true
	case []int64:
		out := make([]float64, len(l))
		for i, n := range l {
			out[i] = float64(n)
		}
		return out, true
	case []any:
		out := make([]float64, len(l))
		for i, e := range l {
			f, ok := ToFloat(e)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

// Store writes result into the container out: arrays are copied into an
// *ndarray.Array (numbers fill it) and numbers into a *float64.
func Store(out any, result any) error {
	switch o := out.(type) {
	case *ndarray.Array:
		switch r := result.(type) {
		case *ndarray.Array:
			return o.CopyFrom(r)
		default:
			f, ok := ToFloat(result)
			if !ok {
				return fmt.Errorf("cannot store %T in array", result)
			}
			o.Fill(f)
			return nil
		}
	case *float64:
		f, ok := ToFloat(result)
		if !ok {
			return fmt.Errorf("cannot store %T in number", result)
		}
		*o = f
		return nil
	}
	return fmt.Errorf("unsupported output container %T", out)
}
