// Package nn implements the trainable layers: convolutional and
// fully-connected (contiguous) layers, and their autoencoder counterparts
// used for greedy unsupervised pre-training.
//
// Every layer owns its weights, thresholds and momentum state and exposes two
// forward paths over the same parameters:
//
//   - ForwardInference is deterministic. With dropout configured the
//     activations are scaled by the keep probability.
//   - ForwardTraining draws a fresh Bernoulli mask per call and returns a
//     Trace consumed by Backward.
//
// Backward is the analytic gradient of the layer; GradientStep applies the
// momentum update using the layer's own rates.
package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/saenet/internal/backend/cpu"
	"github.com/born-ml/saenet/internal/optim"
	"github.com/born-ml/saenet/internal/tensor"
)

// Parameter names used for checkpoint tensors.
const (
	ParamWeights           = "weights"
	ParamThresholds        = "thresholds"
	ParamVisibleThresholds = "visible_thresholds"
)

// DefaultLearningRate is used when a layer config leaves LearningRate at zero.
const DefaultLearningRate = 0.001

// Layer is the contract shared by every layer kind.
type Layer interface {
	// ID is unique within a network.
	ID() string
	Kind() Kind

	// InputSize is (batch, channels, rows, cols) or (batch, features).
	InputSize() tensor.Shape
	OutputSize() tensor.Shape

	// Parameters lists the trainable tensors in gradient order.
	Parameters() []Parameter

	ForwardInference(input *tensor.Tensor) *tensor.Tensor
	ForwardTraining(input *tensor.Tensor) (*tensor.Tensor, *Trace)

	// Backward returns the gradient with respect to the input and one
	// gradient per parameter (nil when a parameter is not involved).
	Backward(trace *Trace, gradOutput *tensor.Tensor) (*tensor.Tensor, []*tensor.Tensor)

	// GradientStep applies momentum = mr*momentum - lr*grad; param += momentum.
	GradientStep(grads []*tensor.Tensor)

	Activation() Activation
	LearningRate() float64
	MomentumRate() float64
	// Dropout returns the keep probability, 0 when dropout is disabled.
	Dropout() float64

	// Definition describes the layer for checkpoints.
	Definition() Definition
}

// Parameter is a named trainable tensor.
type Parameter struct {
	Name   string
	Tensor *tensor.Tensor
}

// Trace carries what Backward needs from one ForwardTraining call.
type Trace struct {
	input   *tensor.Tensor // input viewed with the layer's InputSize
	output  *tensor.Tensor // activated output before the dropout mask
	mask    []float64      // per-sample dropout mask, nil without dropout
	indices []int          // max pooling winners
}

// Output returns the activated output recorded by the forward pass, before
// any dropout mask.
func (t *Trace) Output() *tensor.Tensor {
	return t.output
}

// Options are the settings shared by every layer kind.
type Options struct {
	ID           string
	LearningRate float64 // Default: DefaultLearningRate
	MomentumRate float64
	// Dropout is the keep probability in (0, 1]. 0 or 1 disables dropout.
	Dropout    float64
	Activation Activation // Default: Tanh

	// InitialWeights and InitialThresholds override random initialisation.
	InitialWeights    *tensor.Tensor
	InitialThresholds *tensor.Tensor

	// Rand drives weight initialisation and dropout masks. Nil seeds from
	// the clock.
	Rand *rand.Rand
	// Backend runs the kernels. Nil uses a default CPU backend.
	Backend *cpu.CPUBackend
}

// base holds the state common to all layer kinds.
type base struct {
	id         string
	kind       Kind
	inputSize  tensor.Shape
	outputSize tensor.Shape
	weights    *tensor.Tensor
	thresholds *tensor.Tensor
	act        Activation
	dropout    float64
	opt        *optim.Momentum
	rng        *rand.Rand
	be         *cpu.CPUBackend
}

func newBase(kind Kind, opts Options, inputSize, outputSize tensor.Shape) (base, error) {
	if opts.ID == "" {
		return base{}, fmt.Errorf("%s layer needs an id", kind)
	}
	if opts.Dropout < 0 || opts.Dropout > 1 {
		return base{}, fmt.Errorf("layer %s: dropout keep probability %g outside (0, 1]", opts.ID, opts.Dropout)
	}
	if opts.LearningRate == 0 {
		opts.LearningRate = DefaultLearningRate
	}
	rates := optim.MomentumConfig{LearningRate: opts.LearningRate, MomentumRate: opts.MomentumRate}
	if err := rates.Validate(); err != nil {
		return base{}, fmt.Errorf("layer %s: %w", opts.ID, err)
	}
	act, err := ParseActivation(string(opts.Activation))
	if err != nil {
		return base{}, fmt.Errorf("layer %s: %w", opts.ID, err)
	}
	dropout := opts.Dropout
	if dropout == 1 {
		dropout = 0
	}
	be := opts.Backend
	if be == nil {
		be = cpu.New()
	}
	return base{
		id:         opts.ID,
		kind:       kind,
		inputSize:  inputSize.Clone(),
		outputSize: outputSize.Clone(),
		act:        act,
		dropout:    dropout,
		rng:        newRand(opts.Rand),
		be:         be,
	}, nil
}

// initParams sets weights and thresholds from the options, falling back to
// Xavier initialisation and zero thresholds.
func (b *base) initParams(opts Options, weightShape, thresholdShape tensor.Shape, fanIn, fanOut float64) error {
	if opts.InitialWeights != nil {
		if !opts.InitialWeights.Shape().Equal(weightShape) {
			return shapeErr(b.id, "initial weights", opts.InitialWeights.Shape(), weightShape)
		}
		b.weights = opts.InitialWeights.Clone()
	} else {
		b.weights = XavierUniform(b.rng, weightShape, fanIn, fanOut)
	}

	if opts.InitialThresholds != nil {
		if !opts.InitialThresholds.Shape().Equal(thresholdShape) {
			return shapeErr(b.id, "initial thresholds", opts.InitialThresholds.Shape(), thresholdShape)
		}
		b.thresholds = opts.InitialThresholds.Clone()
	} else {
		b.thresholds = tensor.Zeros(thresholdShape)
	}
	return nil
}

func (b *base) newOptimizer(lr, momentum float64, params ...*tensor.Tensor) {
	if lr == 0 {
		lr = DefaultLearningRate
	}
	b.opt = optim.NewMomentum(params, optim.MomentumConfig{LearningRate: lr, MomentumRate: momentum})
}

func (b *base) ID() string               { return b.id }
func (b *base) Kind() Kind               { return b.kind }
func (b *base) InputSize() tensor.Shape  { return b.inputSize.Clone() }
func (b *base) OutputSize() tensor.Shape { return b.outputSize.Clone() }
func (b *base) Activation() Activation   { return b.act }
func (b *base) LearningRate() float64    { return b.opt.LearningRate() }
func (b *base) MomentumRate() float64    { return b.opt.MomentumRate() }
func (b *base) Dropout() float64         { return b.dropout }

// Weights returns the weight tensor.
func (b *base) Weights() *tensor.Tensor { return b.weights }

// Thresholds returns the per-unit threshold (bias) tensor.
func (b *base) Thresholds() *tensor.Tensor { return b.thresholds }

// Optimizer returns the layer's momentum state.
func (b *base) Optimizer() *optim.Momentum { return b.opt }

// GradientStep applies one momentum update with the layer's rates.
func (b *base) GradientStep(grads []*tensor.Tensor) {
	b.opt.Step(grads)
}

// asInput views x with the layer's input shape. Any tensor holding the same
// number of elements is accepted so flattened or split views can be fed
// without copying.
func (b *base) asInput(x *tensor.Tensor) *tensor.Tensor {
	if x.Shape().Equal(b.inputSize) {
		return x
	}
	v, err := x.Reshape(b.inputSize)
	if err != nil {
		panic(fmt.Sprintf("layer %s: input %v does not fit %v", b.id, x.Shape(), b.inputSize))
	}
	return v
}

// scaleForInference multiplies activations by the keep probability.
func (b *base) scaleForInference(y *tensor.Tensor) *tensor.Tensor {
	if b.dropout == 0 {
		return y
	}
	d := y.Data()
	for i := range d {
		d[i] *= b.dropout
	}
	return y
}

// drawMask samples one Bernoulli(keep) trial per unit of a single sample.
// The mask is shared by every sample of the batch.
func (b *base) drawMask() []float64 {
	if b.dropout == 0 {
		return nil
	}
	mask := make([]float64, b.outputSize.PerSample().NumElements())
	for i := range mask {
		if b.rng.Float64() < b.dropout {
			mask[i] = 1
		}
	}
	return mask
}

// applyMask returns y with the mask applied to every sample. y itself is
// left intact so Backward can use the unmasked activations.
func applyMask(y *tensor.Tensor, mask []float64) *tensor.Tensor {
	if mask == nil {
		return y
	}
	out := y.Clone()
	d := out.Data()
	for i := range d {
		d[i] *= mask[i%len(mask)]
	}
	return out
}

// maskedGradient multiplies an output gradient by the dropout mask and the
// activation derivative, giving the gradient at the logits.
func (b *base) maskedGradient(trace *Trace, gradOutput *tensor.Tensor) *tensor.Tensor {
	if gradOutput.Len() != trace.output.Len() {
		panic(fmt.Sprintf("layer %s: gradient %v does not match output %v", b.id, gradOutput.Shape(), trace.output.Shape()))
	}
	g := gradOutput.Clone().MustReshape(trace.output.Shape())
	if trace.mask != nil {
		d := g.Data()
		for i := range d {
			d[i] *= trace.mask[i%len(trace.mask)]
		}
	}
	b.act.Backward(g, trace.output)
	return g
}
