// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float64 tensors used by every saenet
// layer.
//
// # Overview
//
// A Tensor is a shape plus contiguous row-major storage:
//   - Shape is (batch, channels, rows, cols) for images and (batch, features)
//     for fully-connected layers
//   - Reshape returns a view sharing storage with its source
//   - Flatten and SplitKernels compute the views networks insert between
//     layers
//
// # Basic Usage
//
//	import "github.com/born-ml/saenet/tensor"
//
//	func main() {
//	    x := tensor.Zeros(tensor.Shape{5, 1, 28, 28})
//	    flat := x.MustReshape(tensor.Flatten(x.Shape()))
//	    _ = flat // (5, 784)
//	}
package tensor
