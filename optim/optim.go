// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/saenet/internal/optim"
	"github.com/born-ml/saenet/internal/tensor"
)

// Momentum is gradient descent with classical momentum.
type Momentum = optim.Momentum

// MomentumConfig contains the learning and momentum rates.
type MomentumConfig = optim.MomentumConfig

// NewMomentum creates a momentum optimizer over params with zeroed
// velocities.
func NewMomentum(params []*tensor.Tensor, config MomentumConfig) *Momentum {
	return optim.NewMomentum(params, config)
}
