package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/saenet/internal/tensor"
)

// Activation is an elementwise nonlinearity applied to a layer's logits.
type Activation string

// Supported activations.
const (
	Tanh     Activation = "tanh"
	Sigmoid  Activation = "sigmoid"
	Identity Activation = "identity"
)

// ParseActivation converts a configuration string into an Activation.
// The empty string selects Tanh.
func ParseActivation(s string) (Activation, error) {
	switch Activation(s) {
	case "":
		return Tanh, nil
	case Tanh, Sigmoid, Identity:
		return Activation(s), nil
	default:
		return "", fmt.Errorf("unknown activation %q", s)
	}
}

// Apply evaluates the activation at x.
func (a Activation) Apply(x float64) float64 {
	switch a {
	case Sigmoid:
		return 1 / (1 + math.Exp(-x))
	case Identity:
		return x
	default:
		return math.Tanh(x)
	}
}

// Derivative returns f'(x) expressed through the output y = f(x).
func (a Activation) Derivative(y float64) float64 {
	switch a {
	case Sigmoid:
		return y * (1 - y)
	case Identity:
		return 1
	default:
		return 1 - y*y
	}
}

// DerivativeSlope returns d/dy of Derivative(y). The contraction penalty
// depends on the derivative, so its gradient needs this second-order term.
func (a Activation) DerivativeSlope(y float64) float64 {
	switch a {
	case Sigmoid:
		return 1 - 2*y
	case Identity:
		return 0
	default:
		return -2 * y
	}
}

// ApplyTo activates every element of t in place.
func (a Activation) ApplyTo(t *tensor.Tensor) {
	d := t.Data()
	for i, v := range d {
		d[i] = a.Apply(v)
	}
}

// Backward multiplies grad in place by the derivative at the outputs y.
func (a Activation) Backward(grad, y *tensor.Tensor) {
	g, yd := grad.Data(), y.Data()
	for i := range g {
		g[i] *= a.Derivative(yd[i])
	}
}

// DerivativeOf returns a new tensor holding Derivative(y) elementwise.
func (a Activation) DerivativeOf(y *tensor.Tensor) *tensor.Tensor {
	out := y.Clone()
	d := out.Data()
	for i, v := range d {
		d[i] = a.Derivative(v)
	}
	return out
}
