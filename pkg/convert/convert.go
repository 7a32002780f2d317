// Package convert moves array data between host arrays (ndarray) and the
// foreign runtime's image structures (imglib).
//
// Host arrays are row-major and imglib intervals have axis 0 fastest, so a
// host array of shape (s0, ..., sn) corresponds to the interval with
// dimensions (sn, ..., s0). Both layouts then address the same flat memory.
package convert

import (
	"fmt"

	"github.com/scijava/opsgate/pkg/imglib"
	"github.com/scijava/opsgate/pkg/ndarray"
)

// ToHostArray copies iv into a new host array of the given element type,
// shaped as the reverse of the interval's dimensions. An empty dtype means
// ndarray.Float64.
func ToHostArray(iv imglib.RandomAccessibleInterval, dtype ndarray.DType) (*ndarray.Array, error) {
	if dtype == "" {
		dtype = ndarray.Float64
	}

	dims := iv.Dimensions()
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[len(dims)-1-i] = int(d)
	}

	arr, err := ndarray.Zeros(shape, dtype)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate host array: %w", err)
	}
	if err := imglib.Copy(iv, FromHostArray(arr)); err != nil {
		return nil, fmt.Errorf("failed to copy interval: %w", err)
	}
	return arr, nil
}

// FromHostArray wraps a as an image without copying. The image and the array
// share memory: writes through either are visible in the other and nothing
// synchronizes them. Values written through the image are cast to a's dtype.
func FromHostArray(a *ndarray.Array) *imglib.ArrayImg {
	shape := a.Shape()
	dims := make([]int64, len(shape))
	for i, s := range shape {
		dims[len(shape)-1-i] = int64(s)
	}
	img, err := imglib.NewArrayImg(dims, a.Data(), a.DType().Cast)
	if err != nil {
		// An Array always holds exactly prod(shape) elements.
		panic(fmt.Sprintf("convert: %v", err))
	}
	return img
}

// MeshToTriangles returns one 3x3 array per mesh triangle, in iteration
// order. Row i of an array holds vertex i as (x, y, z).
func MeshToTriangles(m imglib.Mesh) []*ndarray.Array {
	tris := m.Triangles()
	out := make([]*ndarray.Array, len(tris))
	for i, t := range tris {
		a, _ := ndarray.New([]int{3, 3}, ndarray.Float64, triangleData(t))
		out[i] = a
	}
	return out
}

// MeshToArray stacks the triangles of m into one array of shape (n, 3, 3).
func MeshToArray(m imglib.Mesh) *ndarray.Array {
	tris := m.Triangles()
	data := make([]float64, 0, len(tris)*9)
	for _, t := range tris {
		data = append(data, triangleData(t)...)
	}
	a, _ := ndarray.New([]int{len(tris), 3, 3}, ndarray.Float64, data)
	return a
}

func triangleData(t imglib.Triangle) []float64 {
	data := make([]float64, 0, 9)
	for _, v := range []imglib.Vertex{t.V0, t.V1, t.V2} {
		for _, c := range v {
			data = append(data, float64(c))
		}
	}
	return data
}

