// Package imglib models the foreign runtime's image data: n-dimensional
// intervals addressed by position, array-backed images, and triangle meshes.
//
// Dimension vectors follow the foreign convention: axis 0 (X) varies fastest
// in memory. A host row-major array of shape (rows, cols) is therefore the
// interval with dimensions (cols, rows).
package imglib

import (
	"fmt"
)

// Interval is a bounded n-dimensional domain with a zero origin.
type Interval interface {
	// NumDimensions returns the number of axes.
	NumDimensions() int

	// Dimensions returns the extent of every axis, fastest-varying first.
	Dimensions() []int64
}

// RandomAccessibleInterval is an Interval whose samples can be read at any position.
type RandomAccessibleInterval interface {
	Interval

	// Get returns the sample at pos. pos must lie inside the interval.
	Get(pos []int64) float64
}

// WritableInterval is a RandomAccessibleInterval whose samples can be written.
type WritableInterval interface {
	RandomAccessibleInterval

	// Set stores v at pos. pos must lie inside the interval.
	Set(pos []int64, v float64)
}

// ArrayImg is an image backed by a flat float64 slice with axis 0 fastest.
// The slice may be shared with other owners; ArrayImg does no locking.
type ArrayImg struct {
	dims    []int64
	strides []int64
	data    []float64
	cast    func(float64) float64
}

// NewArrayImg wraps data as an image with the given dimensions. data is not
// copied. cast, when non-nil, coerces every written value.
func NewArrayImg(dims []int64, data []float64, cast func(float64) float64) (*ArrayImg, error) {
	size := int64(1)
	for i, d := range dims {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension %d at axis %d", d, i)
		}
		size *= d
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("data length %d does not match dimensions %v", len(data), dims)
	}

	strides := make([]int64, len(dims))
	stride := int64(1)
	for i, d := range dims {
		strides[i] = stride
		stride *= d
	}

	return &ArrayImg{
		dims:    append([]int64(nil), dims...),
		strides: strides,
		data:    data,
		cast:    cast,
	}, nil
}

// Create allocates a zero-filled ArrayImg.
func Create(dims ...int64) (*ArrayImg, error) {
	size := int64(1)
	for _, d := range dims {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension %d", d)
		}
		size *= d
	}
	return NewArrayImg(dims, make([]float64, size), nil)
}

// NumDimensions implements Interval.
func (img *ArrayImg) NumDimensions() int {
	return len(img.dims)
}

// Dimensions implements Interval.
func (img *ArrayImg) Dimensions() []int64 {
	return append([]int64(nil), img.dims...)
}

// Get implements RandomAccessibleInterval.
func (img *ArrayImg) Get(pos []int64) float64 {
	return img.data[img.index(pos)]
}

// Set implements WritableInterval.
func (img *ArrayImg) Set(pos []int64, v float64) {
	if img.cast != nil {
		v = img.cast(v)
	}
	img.data[img.index(pos)] = v
}

// Data returns the backing slice.
func (img *ArrayImg) Data() []float64 {
	return img.data
}

func (img *ArrayImg) index(pos []int64) int {
	if len(pos) != len(img.dims) {
		panic(fmt.Sprintf("imglib: position has %d axes, image has %d", len(pos), len(img.dims)))
	}
	var off int64
	for i, p := range pos {
		if p < 0 || p >= img.dims[i] {
			panic(fmt.Sprintf("imglib: position %v outside dimensions %v", pos, img.dims))
		}
		off += p * img.strides[i]
	}
	return int(off)
}

var _ WritableInterval = (*ArrayImg)(nil)

// Copy copies every sample of src into dst. Both intervals must have the same
// dimensions. Positions are visited with axis 0 fastest.
func Copy(src RandomAccessibleInterval, dst WritableInterval) error {
	sdims := src.Dimensions()
	ddims := dst.Dimensions()
	if len(sdims) != len(ddims) {
		return fmt.Errorf("dimensionality mismatch: %d vs %d", len(sdims), len(ddims))
	}
	for i := range sdims {
		if sdims[i] != ddims[i] {
			return fmt.Errorf("dimension mismatch: %v vs %v", sdims, ddims)
		}
	}

	for _, d := range sdims {
		if d == 0 {
			return nil
		}
	}

	pos := make([]int64, len(sdims))
	for {
		dst.Set(pos, src.Get(pos))

		axis := 0
		for ; axis < len(pos); axis++ {
			pos[axis]++
			if pos[axis] < sdims[axis] {
				break
			}
			pos[axis] = 0
		}
		if axis == len(pos) {
			return nil
		}
	}
}

// Equal reports whether a and b have the same dimensions and samples.
func Equal(a, b RandomAccessibleInterval) bool {
	ad := a.Dimensions()
	bd := b.Dimensions()
	if len(ad) != len(bd) {
		return false
	}
	for i := range ad {
		if ad[i] != bd[i] {
			return false
		}
	}
	eq := true
	_ = Copy(a, &compareSink{ref: b, eq: &eq})
	return eq
}

// compareSink is a WritableInterval that records whether every written value
// matches the reference interval.
type compareSink struct {
	ref RandomAccessibleInterval
	eq  *bool
}

func (c *compareSink) NumDimensions() int      { return c.ref.NumDimensions() }
func (c *compareSink) Dimensions() []int64     { return c.ref.Dimensions() }
func (c *compareSink) Get(pos []int64) float64 { return c.ref.Get(pos) }

func (c *compareSink) Set(pos []int64, v float64) {
	if c.ref.Get(pos) != v {
		*c.eq = false
	}
}
