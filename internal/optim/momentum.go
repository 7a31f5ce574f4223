// Package optim implements the gradient-descent-with-momentum update that
// every layer applies to its own parameters.
package optim

import (
	"fmt"

	"github.com/born-ml/saenet/internal/tensor"
)

// Momentum is gradient descent with a decaying velocity per parameter.
//
// Update rule:
//
//	velocity = momentumRate * velocity - learningRate * gradient
//	param    = param + velocity
//
// With momentumRate 0 this is plain gradient descent. Velocities start at
// zero and persist across Step calls until Reset.
//
// Example:
//
//	opt := optim.NewMomentum([]*tensor.Tensor{w, b}, optim.MomentumConfig{
//	    LearningRate: 0.0031,
//	    MomentumRate: 0.3,
//	})
//	opt.Step([]*tensor.Tensor{gradW, gradB})
type Momentum struct {
	params     []*tensor.Tensor
	velocities []*tensor.Tensor
	lr         float64
	momentum   float64
	steps      int64
}

// MomentumConfig holds the rates of a Momentum optimizer.
type MomentumConfig struct {
	LearningRate float64 // Step size (must be > 0)
	MomentumRate float64 // Velocity decay in [0, 1)
}

// Validate checks the configured rates.
func (c MomentumConfig) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be > 0, got %g", c.LearningRate)
	}
	if c.MomentumRate < 0 || c.MomentumRate >= 1 {
		return fmt.Errorf("momentum rate must be in [0, 1), got %g", c.MomentumRate)
	}
	return nil
}

// NewMomentum creates an optimizer over params with zeroed velocities.
func NewMomentum(params []*tensor.Tensor, config MomentumConfig) *Momentum {
	velocities := make([]*tensor.Tensor, len(params))
	for i, p := range params {
		velocities[i] = tensor.ZerosLike(p)
	}
	return &Momentum{
		params:     params,
		velocities: velocities,
		lr:         config.LearningRate,
		momentum:   config.MomentumRate,
	}
}

// Step applies one update. grads[i] pairs with the i-th parameter; a nil
// gradient leaves that parameter and its velocity untouched.
func (m *Momentum) Step(grads []*tensor.Tensor) {
	if len(grads) != len(m.params) {
		panic(fmt.Sprintf("optim: %d gradients for %d parameters", len(grads), len(m.params)))
	}

	for i, grad := range grads {
		if grad == nil {
			continue
		}
		param := m.params[i]
		if grad.Len() != param.Len() {
			panic(fmt.Sprintf("optim: gradient %v does not match parameter %v", grad.Shape(), param.Shape()))
		}

		v := m.velocities[i].Data()
		p := param.Data()
		for j, g := range grad.Data() {
			v[j] = m.momentum*v[j] - m.lr*g
			p[j] += v[j]
		}
	}
	m.steps++
}

// Steps returns the number of Step calls since creation or Reset.
func (m *Momentum) Steps() int64 {
	return m.steps
}

// Reset zeroes every velocity.
func (m *Momentum) Reset() {
	for _, v := range m.velocities {
		clear(v.Data())
	}
	m.steps = 0
}

// LearningRate returns the step size.
func (m *Momentum) LearningRate() float64 {
	return m.lr
}

// MomentumRate returns the velocity decay.
func (m *Momentum) MomentumRate() float64 {
	return m.momentum
}

// SetLearningRate updates the step size.
func (m *Momentum) SetLearningRate(lr float64) {
	m.lr = lr
}

// Velocities returns the velocity tensors in parameter order.
func (m *Momentum) Velocities() []*tensor.Tensor {
	return m.velocities
}

// LoadVelocities overwrites the velocity state, e.g. from a checkpoint.
func (m *Momentum) LoadVelocities(velocities []*tensor.Tensor) error {
	if len(velocities) != len(m.velocities) {
		return fmt.Errorf("expected %d velocity tensors, got %d", len(m.velocities), len(velocities))
	}
	for i, v := range velocities {
		if !v.Shape().Equal(m.velocities[i].Shape()) {
			return fmt.Errorf("velocity %d: shape %v does not match %v", i, v.Shape(), m.velocities[i].Shape())
		}
	}
	for i, v := range velocities {
		m.velocities[i].CopyFrom(v)
	}
	return nil
}
