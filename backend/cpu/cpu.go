// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend used by saenet layers.
package cpu

import (
	internalcpu "github.com/born-ml/saenet/internal/backend/cpu"
)

// Backend represents the CPU backend implementation.
//
// Matrix products go through gonum BLAS; convolutions use im2col. Per-sample
// work is split across goroutines.
type Backend = internalcpu.CPUBackend

// New creates a new CPU backend.
//
// Example:
//
//	import (
//	    "github.com/born-ml/saenet/backend/cpu"
//	    "github.com/born-ml/saenet/nn"
//	    "github.com/born-ml/saenet/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    layer, err := nn.NewContiguousLayer(nn.ContiguousConfig{
//	        Options:    nn.Options{ID: "f3", Backend: backend},
//	        InputSize:  tensor.Shape{5, 784},
//	        NumNeurons: 120,
//	    })
//	}
func New() *Backend {
	return internalcpu.New()
}
