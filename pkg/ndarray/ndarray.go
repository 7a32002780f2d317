// Package ndarray provides the dense, row-major host array used on the Go side
// of the operation gateway.
//
// Values are stored as float64 regardless of the declared element type; the
// DType governs how values are coerced when written, so an Array declared as
// uint8 only ever holds integers in [0, 255]. The backing slice returned by
// Data is shared, which is what allows imglib views to alias an Array without
// copying.
package ndarray

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DType is the declared element type of an Array.
type DType string

// Supported element types.
const (
	Float64 DType = "float64"
	Float32 DType = "float32"
	Int64   DType = "int64"
	Int32   DType = "int32"
	Int16   DType = "int16"
	Int8    DType = "int8"
	Uint64  DType = "uint64"
	Uint32  DType = "uint32"
	Uint16  DType = "uint16"
	Uint8   DType = "uint8"
	Bool    DType = "bool"
)

var intRanges = map[DType][2]float64{
	Int64:  {math.MinInt64, math.MaxInt64},
	Int32:  {math.MinInt32, math.MaxInt32},
	Int16:  {math.MinInt16, math.MaxInt16},
	Int8:   {math.MinInt8, math.MaxInt8},
	Uint64: {0, math.MaxUint64},
	Uint32: {0, math.MaxUint32},
	Uint16: {0, math.MaxUint16},
	Uint8:  {0, math.MaxUint8},
}

// ParseDType parses a dtype name. An empty name yields Float64.
func ParseDType(name string) (DType, error) {
	d := DType(strings.ToLower(strings.TrimSpace(name)))
	if d == "" {
		return Float64, nil
	}
	if !d.Valid() {
		return "", fmt.Errorf("unsupported dtype %q", name)
	}
	return d, nil
}

// Valid reports whether d is a supported element type.
func (d DType) Valid() bool {
	switch d {
	case Float64, Float32, Bool:
		return true
	}
	_, ok := intRanges[d]
	return ok
}

// Cast coerces v to the value an element of type d can hold.
// Integer types truncate toward zero and saturate at their range; NaN becomes 0.
func (d DType) Cast(v float64) float64 {
	switch d {
	case Float64, "":
		return v
	case Float32:
		return float64(float32(v))
	case Bool:
		if v != 0 && !math.IsNaN(v) {
			return 1
		}
		return 0
	}
	r, ok := intRanges[d]
	if !ok {
		return v
	}
	if math.IsNaN(v) {
		return 0
	}
	v = math.Trunc(v)
	if v < r[0] {
		return r[0]
	}
	if v > r[1] {
		return r[1]
	}
	return v
}

// Array is a dense n-dimensional array stored in row-major order:
// the last axis varies fastest.
type Array struct {
	shape   []int
	strides []int
	dtype   DType
	data    []float64
}

// Zeros allocates a zero-filled array with the given shape and element type.
func Zeros(shape []int, dtype DType) (*Array, error) {
	if dtype == "" {
		dtype = Float64
	}
	if !dtype.Valid() {
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}
	size, err := sizeOf(shape)
	if err != nil {
		return nil, err
	}
	return &Array{
		shape:   append([]int(nil), shape...),
		strides: stridesOf(shape),
		dtype:   dtype,
		data:    make([]float64, size),
	}, nil
}

// New wraps data as an array of the given shape. The slice is not copied;
// values are coerced to dtype in place.
func New(shape []int, dtype DType, data []float64) (*Array, error) {
	if dtype == "" {
		dtype = Float64
	}
	if !dtype.Valid() {
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}
	size, err := sizeOf(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != size {
		return nil, fmt.Errorf("data length %d does not match shape %v (size %d)", len(data), shape, size)
	}
	for i, v := range data {
		data[i] = dtype.Cast(v)
	}
	return &Array{
		shape:   append([]int(nil), shape...),
		strides: stridesOf(shape),
		dtype:   dtype,
		data:    data,
	}, nil
}

// FromSlice returns a one-dimensional float64 array holding a copy of values.
func FromSlice(values []float64) *Array {
	data := append([]float64(nil), values...)
	return &Array{
		shape:   []int{len(data)},
		strides: []int{1},
		dtype:   Float64,
		data:    data,
	}
}

func sizeOf(shape []int) (int, error) {
	size := 1
	for i, n := range shape {
		if n < 0 {
			return 0, fmt.Errorf("negative dimension %d at axis %d", n, i)
		}
		if n != 0 && size > math.MaxInt/n {
			return 0, fmt.Errorf("shape %v overflows the element count", shape)
		}
		size *= n
	}
	return size, nil
}

func stridesOf(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// Shape returns a copy of the array's shape.
func (a *Array) Shape() []int {
	return append([]int(nil), a.shape...)
}

// NDim returns the number of axes.
func (a *Array) NDim() int {
	return len(a.shape)
}

// Size returns the number of elements.
func (a *Array) Size() int {
	return len(a.data)
}

// DType returns the declared element type.
func (a *Array) DType() DType {
	return a.dtype
}

// Data returns the backing slice. Writes through it bypass dtype coercion.
func (a *Array) Data() []float64 {
	return a.data
}

// Offset returns the flat offset of the element at idx.
func (a *Array) Offset(idx ...int) (int, error) {
	if len(idx) != len(a.shape) {
		return 0, fmt.Errorf("index has %d axes, array has %d", len(idx), len(a.shape))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.shape[i] {
			return 0, fmt.Errorf("index %d out of range for axis %d with size %d", v, i, a.shape[i])
		}
		off += v * a.strides[i]
	}
	return off, nil
}

// At returns the element at idx. It panics if idx is out of range.
func (a *Array) At(idx ...int) float64 {
	off, err := a.Offset(idx...)
	if err != nil {
		panic("ndarray: " + err.Error())
	}
	return a.data[off]
}

// Set stores v at idx after dtype coercion. It panics if idx is out of range.
func (a *Array) Set(v float64, idx ...int) {
	off, err := a.Offset(idx...)
	if err != nil {
		panic("ndarray: " + err.Error())
	}
	a.data[off] = a.dtype.Cast(v)
}

// Flat returns the element at flat offset i.
func (a *Array) Flat(i int) float64 {
	return a.data[i]
}

// SetFlat stores v at flat offset i after dtype coercion.
func (a *Array) SetFlat(i int, v float64) {
	a.data[i] = a.dtype.Cast(v)
}

// Fill sets every element to v.
func (a *Array) Fill(v float64) {
	v = a.dtype.Cast(v)
	for i := range a.data {
		a.data[i] = v
	}
}

// Copy returns a deep copy.
func (a *Array) Copy() *Array {
	return &Array{
		shape:   append([]int(nil), a.shape...),
		strides: append([]int(nil), a.strides...),
		dtype:   a.dtype,
		data:    append([]float64(nil), a.data...),
	}
}

// SameShape reports whether a and b have identical shapes.
func (a *Array) SameShape(b *Array) bool {
	if len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	return true
}

// Equal reports whether a and b have the same shape and element values.
// The declared dtypes are not compared.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !a.SameShape(b) {
		return false
	}
	for i := range a.data {
		if a.data[i] != b.data[i] {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (a *Array) String() string {
	return fmt.Sprintf("array(shape=%v, dtype=%s)", a.shape, a.dtype)
}

// wireArray is the JSON form used when arrays cross a runtime boundary.
type wireArray struct {
	Shape []int     `json:"shape"`
	DType DType     `json:"dtype"`
	Data  []float64 `json:"data"`
}

// MarshalJSON implements json.Marshaler.
func (a *Array) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireArray{Shape: a.shape, DType: a.dtype, Data: a.data})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Array) UnmarshalJSON(b []byte) error {
	var w wireArray
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Data == nil {
		w.Data = []float64{}
	}
	arr, err := New(w.Shape, w.DType, w.Data)
	if err != nil {
		return err
	}
	*a = *arr
	return nil
}

// CopyFrom overwrites a's elements with b's. Shapes must match.
func (a *Array) CopyFrom(b *Array) error {
	if !a.SameShape(b) {
		return fmt.Errorf("shape mismatch: %v vs %v", a.shape, b.shape)
	}
	for i, v := range b.data {
		a.data[i] = a.dtype.Cast(v)
	}
	return nil
}
