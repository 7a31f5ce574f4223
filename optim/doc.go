// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the momentum update used by every saenet layer.
//
// # Overview
//
// Each step applies, per parameter,
//
//	velocity = momentumRate*velocity - learningRate*grad
//	param   += velocity
//
// Layers own their optimizer; it is reachable through the layer's
// Optimizer method when velocities need to be inspected or restored.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/saenet/optim"
//	    "github.com/born-ml/saenet/tensor"
//	)
//
//	func main() {
//	    w := tensor.Zeros(tensor.Shape{784, 120})
//	    opt := optim.NewMomentum([]*tensor.Tensor{w}, optim.MomentumConfig{
//	        LearningRate: 0.0015,
//	        MomentumRate: 0.3,
//	    })
//	    opt.Step(grads)
//	}
package optim
