// Package tensor provides the dense float64 tensor and the shape algebra
// shared by layers, kernels and checkpoints.
package tensor

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// MaxRank is the highest tensor rank used by the layers.
const MaxRank = 4

// Tensor is a dense row-major float64 array with a fixed shape.
//
// Views produced by Reshape share the underlying storage with the source
// tensor; Clone produces an independent copy.
type Tensor struct {
	shape   Shape
	strides []int
	data    []float64
}

// Zeros creates a zero-filled tensor.
// Panics if the shape is invalid.
func Zeros(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor.Zeros: %v", err))
	}
	return &Tensor{
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		data:    make([]float64, shape.NumElements()),
	}
}

// Full creates a tensor filled with value.
// Panics if the shape is invalid.
func Full(shape Shape, value float64) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// ZerosLike returns a zero tensor with the same shape as t.
func ZerosLike(t *Tensor) *Tensor {
	return Zeros(t.shape)
}

// FromSlice creates a tensor that takes ownership of data.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	return &Tensor{
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		data:    data,
	}, nil
}

// MustFromSlice is FromSlice that panics on error.
func MustFromSlice(data []float64, shape Shape) *Tensor {
	t, err := FromSlice(data, shape)
	if err != nil {
		panic(fmt.Sprintf("tensor.MustFromSlice: %v", err))
	}
	return t
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Data returns the backing slice. Writes through it mutate the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// At returns the element at the given indices.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.offset(indices)]
}

// Set stores value at the given indices.
func (t *Tensor) Set(value float64, indices ...int) {
	t.data[t.offset(indices)] = value
}

func (t *Tensor) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: expected %d indices, got %d", len(t.shape), len(indices)))
	}
	off := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for dimension %d (size %d)", idx, i, t.shape[i]))
		}
		off += idx * t.strides[i]
	}
	return off
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{
		shape:   t.shape.Clone(),
		strides: t.shape.ComputeStrides(),
		data:    data,
	}
}

// Reshape returns a view with a new shape over the same storage.
func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(t.data) {
		return nil, fmt.Errorf("cannot reshape %v (%d elements) to %v (%d elements)",
			t.shape, len(t.data), shape, shape.NumElements())
	}
	return &Tensor{
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		data:    t.data,
	}, nil
}

// MustReshape is Reshape that panics on error.
func (t *Tensor) MustReshape(shape Shape) *Tensor {
	r, err := t.Reshape(shape)
	if err != nil {
		panic(fmt.Sprintf("tensor.Reshape: %v", err))
	}
	return r
}

// CopyFrom overwrites t's elements with src's. Shapes must hold the same
// number of elements.
func (t *Tensor) CopyFrom(src *Tensor) {
	if len(src.data) != len(t.data) {
		panic(fmt.Sprintf("tensor.CopyFrom: %v vs %v", t.shape, src.shape))
	}
	copy(t.data, src.data)
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 {
	return floats.Sum(t.data)
}

// Equal reports whether both tensors have the same shape and bit-identical
// elements.
func (t *Tensor) Equal(other *Tensor) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.data {
		if math.Float64bits(v) != math.Float64bits(other.data[i]) {
			return false
		}
	}
	return true
}

// AllClose reports whether both tensors have the same shape and every pair
// of elements is within tol (absolute or relative).
func (t *Tensor) AllClose(other *Tensor, tol float64) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	return floats.EqualApprox(t.data, other.data, tol)
}

// HasNaN reports whether any element is NaN or infinite.
func (t *Tensor) HasNaN() bool {
	for _, v := range t.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// ArgmaxRows returns, for a 2D tensor (rows, cols), the column index of the
// maximum in every row.
func (t *Tensor) ArgmaxRows() []int {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("tensor.ArgmaxRows: need 2D tensor, got %v", t.shape))
	}
	rows, cols := t.shape[0], t.shape[1]
	out := make([]int, rows)
	for r := 0; r < rows; r++ {
		out[r] = floats.MaxIdx(t.data[r*cols : (r+1)*cols])
	}
	return out
}

// Bytes encodes the elements as little-endian float64.
func (t *Tensor) Bytes() []byte {
	buf := make([]byte, 8*len(t.data))
	for i, v := range t.data {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// FromBytes decodes little-endian float64 data into a tensor of the given shape.
func FromBytes(buf []byte, shape Shape) (*Tensor, error) {
	n := shape.NumElements()
	if len(buf) != 8*n {
		return nil, fmt.Errorf("byte length %d does not match shape %v (%d bytes)", len(buf), shape, 8*n)
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return FromSlice(data, shape)
}

// String returns a short description of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}
