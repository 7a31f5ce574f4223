package nn

import (
	"fmt"

	"github.com/born-ml/saenet/internal/tensor"
)

// ContiguousLayer is a fully-connected layer.
//
// Input shape (batch, features), weights (features, neurons), thresholds
// (neurons). Logits are input·weights + thresholds, broadcast over the batch.
//
// Example:
//
//	f4, err := nn.NewContiguousLayer(nn.ContiguousConfig{
//	    Options:    nn.Options{ID: "f4", LearningRate: 0.0015, MomentumRate: 0.3},
//	    InputSize:  tensor.Shape{5, 120},
//	    NumNeurons: 10,
//	})
type ContiguousLayer struct {
	base
}

// ContiguousConfig configures a ContiguousLayer.
type ContiguousConfig struct {
	Options
	InputSize  tensor.Shape // (batch, features)
	NumNeurons int
}

// NewContiguousLayer creates a fully-connected layer.
func NewContiguousLayer(cfg ContiguousConfig) (*ContiguousLayer, error) {
	l, err := newContiguous(KindContiguous, cfg)
	if err != nil {
		return nil, err
	}
	l.newOptimizer(cfg.LearningRate, cfg.MomentumRate, l.weights, l.thresholds)
	return l, nil
}

func newContiguous(kind Kind, cfg ContiguousConfig) (*ContiguousLayer, error) {
	if err := checkContiguous(cfg); err != nil {
		return nil, err
	}
	b, err := newBase(kind, cfg.Options, cfg.InputSize, tensor.Shape{cfg.InputSize[0], cfg.NumNeurons})
	if err != nil {
		return nil, err
	}
	l := &ContiguousLayer{base: b}
	features := cfg.InputSize[1]
	if err := l.initParams(cfg.Options,
		tensor.Shape{features, cfg.NumNeurons}, tensor.Shape{cfg.NumNeurons},
		float64(features), float64(cfg.NumNeurons)); err != nil {
		return nil, err
	}
	return l, nil
}

func checkContiguous(cfg ContiguousConfig) error {
	if len(cfg.InputSize) != 2 || cfg.InputSize.Validate() != nil {
		return fmt.Errorf("layer %s: input size %v must be (batch, features): %w", cfg.ID, cfg.InputSize, ErrShapeMismatch)
	}
	if cfg.NumNeurons <= 0 {
		return fmt.Errorf("layer %s: neuron count %d must be > 0: %w", cfg.ID, cfg.NumNeurons, ErrShapeMismatch)
	}
	return nil
}

// Parameters returns weights and thresholds.
func (l *ContiguousLayer) Parameters() []Parameter {
	return []Parameter{
		{Name: ParamWeights, Tensor: l.weights},
		{Name: ParamThresholds, Tensor: l.thresholds},
	}
}

// NumNeurons returns the output width.
func (l *ContiguousLayer) NumNeurons() int {
	return l.outputSize[1]
}

// ComputeLogits returns input·weights + thresholds.
func (l *ContiguousLayer) ComputeLogits(input, weights, thresholds *tensor.Tensor) *tensor.Tensor {
	z := l.be.MatMul(input, weights)
	l.be.AddRowVector(z, thresholds)
	return z
}

func (l *ContiguousLayer) activated(x *tensor.Tensor) *tensor.Tensor {
	z := l.ComputeLogits(x, l.weights, l.thresholds)
	l.act.ApplyTo(z)
	return z
}

// ForwardInference runs the deterministic path.
func (l *ContiguousLayer) ForwardInference(input *tensor.Tensor) *tensor.Tensor {
	return l.scaleForInference(l.activated(l.asInput(input)))
}

// ForwardTraining runs the stochastic dropout path.
func (l *ContiguousLayer) ForwardTraining(input *tensor.Tensor) (*tensor.Tensor, *Trace) {
	x := l.asInput(input)
	y := l.activated(x)
	trace := &Trace{input: x, output: y, mask: l.drawMask()}
	return applyMask(y, trace.mask), trace
}

// Backward returns d/dinput and the gradients of weights and thresholds.
func (l *ContiguousLayer) Backward(trace *Trace, gradOutput *tensor.Tensor) (*tensor.Tensor, []*tensor.Tensor) {
	dz := l.maskedGradient(trace, gradOutput)
	gradW := l.be.MatMulTransA(trace.input, dz)
	gradB := l.be.SumRows(dz)
	gradIn := l.be.MatMulTransB(dz, l.weights)
	return gradIn, []*tensor.Tensor{gradW, gradB}
}

// Definition describes the layer for checkpoints.
func (l *ContiguousLayer) Definition() Definition {
	d := l.definition()
	d.Neurons = l.NumNeurons()
	return d
}
