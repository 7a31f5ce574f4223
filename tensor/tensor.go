// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/saenet/internal/tensor"

// Shape lists the dimensions of a tensor.
type Shape = tensor.Shape

// Tensor is a dense float64 tensor.
type Tensor = tensor.Tensor

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	return tensor.Full(shape, value)
}

// FromSlice wraps data with the given shape. The slice is not copied.
//
// Example:
//
//	x, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// Flatten returns (batch, rest) for any shape.
func Flatten(s Shape) Shape {
	return tensor.Flatten(s)
}

// SplitKernels returns (B*K, 1, R, C) for a (B, K, R, C) shape.
func SplitKernels(s Shape) (Shape, error) {
	return tensor.SplitKernels(s)
}

// ConvOutput returns the shape of a valid convolution of input by kernel.
func ConvOutput(input, kernel Shape) (Shape, error) {
	return tensor.ConvOutput(input, kernel)
}
