package nn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/saenet/internal/cost"
	"github.com/born-ml/saenet/internal/tensor"
)

// ConvolutionalAutoEncoder is a convolutional layer with a tied-kernel
// decode path.
//
// Encode is identical to ConvolutionalLayer. Decode repeats every pooled
// activation over its pooling window, applies the transposed convolution
// with the same kernels, adds one visible threshold per input channel and
// activates.
type ConvolutionalAutoEncoder struct {
	ConvolutionalLayer
	visible *tensor.Tensor
	recon   cost.Kind
	decAct  Activation
}

// ConvolutionalAEConfig configures a ConvolutionalAutoEncoder.
type ConvolutionalAEConfig struct {
	ConvolutionalConfig
	// ReconstructionCost defaults to cross-entropy.
	ReconstructionCost       cost.Kind
	InitialVisibleThresholds *tensor.Tensor
}

// NewConvolutionalAutoEncoder creates a convolutional autoencoder layer.
// Shape validation is the same as for NewConvolutionalLayer.
func NewConvolutionalAutoEncoder(cfg ConvolutionalAEConfig) (*ConvolutionalAutoEncoder, error) {
	recon, err := cost.ParseKind(string(cfg.ReconstructionCost))
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", cfg.ID, err)
	}
	l, err := newConvolutional(KindConvolutionalAE, cfg.ConvolutionalConfig)
	if err != nil {
		return nil, err
	}
	visible, err := visibleThresholds(cfg.ID, cfg.InitialVisibleThresholds, tensor.Shape{cfg.InputSize[1]})
	if err != nil {
		return nil, err
	}

	ae := &ConvolutionalAutoEncoder{
		ConvolutionalLayer: *l,
		visible:            visible,
		recon:              recon,
		decAct:             decoderActivation(recon, l.act),
	}
	ae.newOptimizer(cfg.LearningRate, cfg.MomentumRate, ae.weights, ae.thresholds, ae.visible)
	return ae, nil
}

// Parameters returns kernels, hidden thresholds and visible thresholds.
func (l *ConvolutionalAutoEncoder) Parameters() []Parameter {
	return []Parameter{
		{Name: ParamWeights, Tensor: l.weights},
		{Name: ParamThresholds, Tensor: l.thresholds},
		{Name: ParamVisibleThresholds, Tensor: l.visible},
	}
}

// VisibleThresholds returns the per-channel decoder thresholds.
func (l *ConvolutionalAutoEncoder) VisibleThresholds() *tensor.Tensor { return l.visible }

// ReconstructionCost returns the cost used against the input.
func (l *ConvolutionalAutoEncoder) ReconstructionCost() cost.Kind { return l.recon }

// Backward propagates through the encoder only.
func (l *ConvolutionalAutoEncoder) Backward(trace *Trace, gradOutput *tensor.Tensor) (*tensor.Tensor, []*tensor.Tensor) {
	gradIn, grads := l.ConvolutionalLayer.Backward(trace, gradOutput)
	return gradIn, append(grads, nil)
}

// decode maps a pooled code (batch, kernels, r, c) back to the input shape.
// It also returns the upsampled code needed for the kernel gradient.
func (l *ConvolutionalAutoEncoder) decode(h *tensor.Tensor) (xHat, up *tensor.Tensor) {
	up = l.be.UpsampleNearest(h, l.downsample[0], l.downsample[1], l.featureSize)
	r := l.be.Conv2DInputBackward(up, l.weights, l.inputSize)
	addChannelBias(r, l.visible)
	l.decAct.ApplyTo(r)
	return r, up
}

// Reconstruct returns the deterministic reconstruction of input.
func (l *ConvolutionalAutoEncoder) Reconstruct(input *tensor.Tensor) *tensor.Tensor {
	a, _ := l.encode(l.asInput(input))
	xHat, _ := l.decode(a)
	return xHat
}

// Updates computes the reconstruction cost and the gradients of kernels,
// thresholds and visible thresholds for one mini-batch.
func (l *ConvolutionalAutoEncoder) Updates(input *tensor.Tensor) (Costs, []*tensor.Tensor) {
	x := l.asInput(input)
	a, indices := l.encode(x)
	mask := l.drawMask()
	h := applyMask(a, mask)
	xHat, up := l.decode(h)

	var costs Costs
	var dr *tensor.Tensor
	costs.Reconstruction, dr = l.recon.Evaluate(x, xHat)
	l.decAct.Backward(dr, xHat)

	gradVisible := sumChannels(dr)
	// The transposed convolution's kernel gradient pairs the reconstruction
	// gradient with the upsampled code.
	gradW := l.be.Conv2DKernelBackward(dr, up, l.kernelSize)
	dUp := l.be.Conv2D(dr, l.weights)
	da := l.be.UpsampleNearestBackward(dUp, l.downsample[0], l.downsample[1], l.outputSize)
	multiplyMask(da, mask)
	l.act.Backward(da, a)

	_, gradWEnc, gradB := l.backwardLogits(&Trace{input: x, indices: indices}, da)
	floats.Add(gradW.Data(), gradWEnc.Data())

	return costs, []*tensor.Tensor{gradW, gradB, gradVisible}
}

// Train applies one gradient step on input.
func (l *ConvolutionalAutoEncoder) Train(input *tensor.Tensor) Costs {
	costs, grads := l.Updates(input)
	l.GradientStep(grads)
	return costs
}

// Promote returns a ConvolutionalLayer carrying a copy of the encoder.
func (l *ConvolutionalAutoEncoder) Promote() (Layer, error) {
	plain, err := NewConvolutionalLayer(ConvolutionalConfig{
		Options:    l.promotedOptions(),
		InputSize:  l.inputSize,
		KernelSize: l.kernelSize,
		Downsample: l.downsample,
	})
	if err != nil {
		return nil, err
	}
	return plain, nil
}

// Definition describes the layer for checkpoints.
func (l *ConvolutionalAutoEncoder) Definition() Definition {
	d := l.ConvolutionalLayer.Definition()
	d.ReconstructionCost = l.recon
	return d
}
