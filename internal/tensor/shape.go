package tensor

import (
	"fmt"
)

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements described by the shape.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that the shape has rank 1..4 and all dimensions are > 0.
func (s Shape) Validate() error {
	if len(s) == 0 || len(s) > MaxRank {
		return fmt.Errorf("invalid rank %d (must be 1..%d)", len(s), MaxRank)
	}
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// stride[i] is the product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// PerSample returns the shape without its leading batch dimension.
func (s Shape) PerSample() Shape {
	if len(s) <= 1 {
		return Shape{1}
	}
	return s[1:].Clone()
}

// String renders the shape as (d0, d1, ...).
func (s Shape) String() string {
	out := "("
	for i, d := range s {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprint(d)
	}
	return out + ")"
}

// ConvOutput returns the feature map shape of a valid, stride-1 convolution.
//
// Input is (batch, channels, rows, cols) and kernel is
// (numKernels, channels, kRows, kCols). The result is
// (batch, numKernels, rows-kRows+1, cols-kCols+1).
func ConvOutput(input, kernel Shape) (Shape, error) {
	if len(input) != 4 || len(kernel) != 4 {
		return nil, fmt.Errorf("convolution needs 4D input and kernel, got %v and %v", input, kernel)
	}
	if input[1] != kernel[1] {
		return nil, fmt.Errorf("kernel channels %d != input channels %d", kernel[1], input[1])
	}
	rows := input[2] - kernel[2] + 1
	cols := input[3] - kernel[3] + 1
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("kernel %v larger than input %v", kernel, input)
	}
	return Shape{input[0], kernel[0], rows, cols}, nil
}

// PoolOutput floor-divides the two trailing spatial dimensions by the
// pooling factors. Remainder rows and columns are dropped.
func PoolOutput(feature Shape, rowFactor, colFactor int) (Shape, error) {
	if len(feature) != 4 {
		return nil, fmt.Errorf("pooling needs a 4D shape, got %v", feature)
	}
	if rowFactor <= 0 || colFactor <= 0 {
		return nil, fmt.Errorf("invalid pooling factor (%d, %d)", rowFactor, colFactor)
	}
	out := Shape{feature[0], feature[1], feature[2] / rowFactor, feature[3] / colFactor}
	if out[2] == 0 || out[3] == 0 {
		return nil, fmt.Errorf("pooling (%d, %d) collapses feature map %v", rowFactor, colFactor, feature)
	}
	return out, nil
}

// Flatten collapses every dimension after the batch into one:
// (B, d1, d2, ...) becomes (B, d1*d2*...).
func Flatten(s Shape) Shape {
	if len(s) == 0 {
		return Shape{1, 1}
	}
	return Shape{s[0], s[1:].NumElements()}
}

// SplitKernels reshapes (B, K, R, C) into (B*K, 1, R, C) so a following
// convolution treats every feature map as an independent single-channel image.
func SplitKernels(s Shape) (Shape, error) {
	if len(s) != 4 {
		return nil, fmt.Errorf("split kernels needs a 4D shape, got %v", s)
	}
	return Shape{s[0] * s[1], 1, s[2], s[3]}, nil
}
