package nn

import (
	"fmt"

	"github.com/born-ml/saenet/internal/tensor"
)

// ConvolutionalLayer convolves its input with a bank of kernels, max-pools
// the feature maps, adds one threshold per kernel and activates.
//
// Shapes:
//   - input:   (batch, channels, rows, cols)
//   - kernel:  (numKernels, channels, kRows, kCols)
//   - feature: (batch, numKernels, rows-kRows+1, cols-kCols+1)
//   - output:  feature with rows and cols floor-divided by the downsample factor
//
// Example:
//
//	c1, err := nn.NewConvolutionalLayer(nn.ConvolutionalConfig{
//	    Options:    nn.Options{ID: "c1", LearningRate: 0.0031, MomentumRate: 0.3},
//	    InputSize:  tensor.Shape{5, 1, 28, 28},
//	    KernelSize: tensor.Shape{6, 1, 5, 5},
//	    Downsample: [2]int{2, 2},
//	})
type ConvolutionalLayer struct {
	base
	kernelSize  tensor.Shape
	featureSize tensor.Shape
	downsample  [2]int
}

// ConvolutionalConfig configures a ConvolutionalLayer.
type ConvolutionalConfig struct {
	Options
	InputSize  tensor.Shape // (batch, channels, rows, cols)
	KernelSize tensor.Shape // (numKernels, channels, kRows, kCols)
	// Downsample is the (rowFactor, colFactor) of the max pooling.
	// A zero factor means 1 (no pooling on that axis).
	Downsample [2]int
}

func (cfg ConvolutionalConfig) factors() [2]int {
	f := cfg.Downsample
	for i := range f {
		if f[i] == 0 {
			f[i] = 1
		}
	}
	return f
}

// convShapes validates a convolutional configuration and returns the
// feature and output sizes.
func convShapes(cfg ConvolutionalConfig) (feature, output tensor.Shape, err error) {
	in, k := cfg.InputSize, cfg.KernelSize
	if len(in) != 4 || in.Validate() != nil {
		return nil, nil, fmt.Errorf("layer %s: input size %v must be (batch, channels, rows, cols): %w", cfg.ID, in, ErrShapeMismatch)
	}
	if len(k) != 4 || k.Validate() != nil {
		return nil, nil, fmt.Errorf("layer %s: kernel size %v must be (kernels, channels, rows, cols): %w", cfg.ID, k, ErrShapeMismatch)
	}
	if in[1] != k[1] {
		return nil, nil, fmt.Errorf("layer %s: kernel channels %d != input channels %d: %w", cfg.ID, k[1], in[1], ErrShapeMismatch)
	}
	if in[2] == k[2] || in[3] == k[3] {
		return nil, nil, fmt.Errorf("layer %s: kernel %v spans the whole input %v: %w", cfg.ID, k, in, ErrShapeMismatch)
	}

	feature, err = tensor.ConvOutput(in, k)
	if err != nil {
		return nil, nil, fmt.Errorf("layer %s: %v: %w", cfg.ID, err, ErrShapeMismatch)
	}
	f := cfg.factors()
	output, err = tensor.PoolOutput(feature, f[0], f[1])
	if err != nil {
		return nil, nil, fmt.Errorf("layer %s: %v: %w", cfg.ID, err, ErrShapeMismatch)
	}
	return feature, output, nil
}

// NewConvolutionalLayer creates a convolutional layer.
//
// Fails with ErrShapeMismatch when the kernel channels differ from the input
// channels, or a kernel spatial dimension equals or exceeds the input's.
func NewConvolutionalLayer(cfg ConvolutionalConfig) (*ConvolutionalLayer, error) {
	l, err := newConvolutional(KindConvolutional, cfg)
	if err != nil {
		return nil, err
	}
	l.newOptimizer(cfg.LearningRate, cfg.MomentumRate, l.weights, l.thresholds)
	return l, nil
}

func newConvolutional(kind Kind, cfg ConvolutionalConfig) (*ConvolutionalLayer, error) {
	feature, output, err := convShapes(cfg)
	if err != nil {
		return nil, err
	}
	b, err := newBase(kind, cfg.Options, cfg.InputSize, output)
	if err != nil {
		return nil, err
	}
	l := &ConvolutionalLayer{
		base:        b,
		kernelSize:  cfg.KernelSize.Clone(),
		featureSize: feature,
		downsample:  cfg.factors(),
	}

	k := l.kernelSize
	fanIn := float64(k[1] * k[2] * k[3])
	fanOut := float64(k[0]*k[2]*k[3]) / float64(l.downsample[0]*l.downsample[1])
	if err := l.initParams(cfg.Options, k, tensor.Shape{k[0]}, fanIn, fanOut); err != nil {
		return nil, err
	}
	return l, nil
}

// Parameters returns weights (the kernels) and thresholds.
func (l *ConvolutionalLayer) Parameters() []Parameter {
	return []Parameter{
		{Name: ParamWeights, Tensor: l.weights},
		{Name: ParamThresholds, Tensor: l.thresholds},
	}
}

// KernelSize returns (numKernels, channels, kRows, kCols).
func (l *ConvolutionalLayer) KernelSize() tensor.Shape {
	return l.kernelSize.Clone()
}

// FeatureSize returns the post-convolution, pre-pooling size.
func (l *ConvolutionalLayer) FeatureSize() tensor.Shape {
	return l.featureSize.Clone()
}

// Downsample returns the pooling factors.
func (l *ConvolutionalLayer) Downsample() [2]int {
	return l.downsample
}

// ComputeLogits convolves, pools and adds the per-kernel thresholds.
// It also returns the pooling winners for the backward pass.
func (l *ConvolutionalLayer) ComputeLogits(input, weights, thresholds *tensor.Tensor) (*tensor.Tensor, []int) {
	feature := l.be.Conv2D(input, weights)
	pooled, indices := l.be.MaxPool2D(feature, l.downsample[0], l.downsample[1])
	addChannelBias(pooled, thresholds)
	return pooled, indices
}

func (l *ConvolutionalLayer) encode(x *tensor.Tensor) (*tensor.Tensor, []int) {
	z, indices := l.ComputeLogits(x, l.weights, l.thresholds)
	l.act.ApplyTo(z)
	return z, indices
}

// ForwardInference runs the deterministic path.
func (l *ConvolutionalLayer) ForwardInference(input *tensor.Tensor) *tensor.Tensor {
	y, _ := l.encode(l.asInput(input))
	return l.scaleForInference(y)
}

// ForwardTraining runs the stochastic dropout path.
func (l *ConvolutionalLayer) ForwardTraining(input *tensor.Tensor) (*tensor.Tensor, *Trace) {
	x := l.asInput(input)
	y, indices := l.encode(x)
	trace := &Trace{input: x, output: y, mask: l.drawMask(), indices: indices}
	return applyMask(y, trace.mask), trace
}

// Backward returns d/dinput and the gradients of the kernels and thresholds.
func (l *ConvolutionalLayer) Backward(trace *Trace, gradOutput *tensor.Tensor) (*tensor.Tensor, []*tensor.Tensor) {
	dz := l.maskedGradient(trace, gradOutput)
	gradIn, gradW, gradB := l.backwardLogits(trace, dz)
	return gradIn, []*tensor.Tensor{gradW, gradB}
}

// backwardLogits propagates a gradient at the pooled logits through the
// pooling and the convolution.
func (l *ConvolutionalLayer) backwardLogits(trace *Trace, dz *tensor.Tensor) (gradIn, gradW, gradB *tensor.Tensor) {
	gradB = sumChannels(dz)
	dFeature := l.be.MaxPool2DBackward(dz, trace.indices, l.featureSize)
	gradW = l.be.Conv2DKernelBackward(trace.input, dFeature, l.kernelSize)
	gradIn = l.be.Conv2DInputBackward(dFeature, l.weights, l.inputSize)
	return gradIn, gradW, gradB
}

// Definition describes the layer for checkpoints.
func (l *ConvolutionalLayer) Definition() Definition {
	d := l.definition()
	d.KernelSize = l.kernelSize.Clone()
	d.Downsample = []int{l.downsample[0], l.downsample[1]}
	return d
}

// addChannelBias adds bias[c] to every element of channel c of x (N, C, H, W).
func addChannelBias(x, bias *tensor.Tensor) {
	s := x.Shape()
	plane := s[2] * s[3]
	d, bd := x.Data(), bias.Data()
	for n := 0; n < s[0]; n++ {
		for c := 0; c < s[1]; c++ {
			off := (n*s[1] + c) * plane
			for i := off; i < off+plane; i++ {
				d[i] += bd[c]
			}
		}
	}
}

// sumChannels sums x (N, C, H, W) over every axis but C.
func sumChannels(x *tensor.Tensor) *tensor.Tensor {
	s := x.Shape()
	plane := s[2] * s[3]
	out := tensor.Zeros(tensor.Shape{s[1]})
	d, od := x.Data(), out.Data()
	for n := 0; n < s[0]; n++ {
		for c := 0; c < s[1]; c++ {
			off := (n*s[1] + c) * plane
			for _, v := range d[off : off+plane] {
				od[c] += v
			}
		}
	}
	return out
}
