// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers of a saenet network.
//
// # Overview
//
// This package contains:
//   - Layers: ConvolutionalLayer (valid convolution plus max pooling) and
//     ContiguousLayer (fully connected)
//   - Autoencoders: ConvolutionalAutoEncoder and ContractiveAutoEncoder,
//     trained greedily and promoted to their plain layer afterwards
//   - Activations: Tanh, Sigmoid, Identity
//   - Errors: ErrShapeMismatch, ErrTypeMismatch, ErrIndexOutOfRange
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/saenet/nn"
//	    "github.com/born-ml/saenet/tensor"
//	)
//
//	func main() {
//	    c1, err := nn.NewConvolutionalLayer(nn.ConvolutionalConfig{
//	        Options:    nn.Options{ID: "c1", LearningRate: 0.0031, MomentumRate: 0.3},
//	        InputSize:  tensor.Shape{5, 1, 28, 28},
//	        KernelSize: tensor.Shape{6, 1, 5, 5},
//	        Downsample: [2]int{2, 2},
//	    })
//	    out := c1.ForwardInference(x) // (5, 6, 12, 12)
//	}
//
// # Dropout
//
// Options.Dropout is the keep probability. ForwardTraining draws one
// Bernoulli mask per call, shared by every sample of the batch;
// ForwardInference scales the activations by the keep probability instead.
package nn
