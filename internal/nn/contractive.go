package nn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/saenet/internal/cost"
	"github.com/born-ml/saenet/internal/tensor"
)

// ContractiveAutoEncoder is a fully-connected autoencoder with tied weights
// and an optional Jacobian contraction penalty.
//
// Encode: h = f(x·W + b) with f sigmoid by default.
// Decode: x̂ = g(h·Wᵀ + b′) with b′ one threshold per input feature.
//
// The cost is the reconstruction cost of x̂ against x plus
// contractionRate · ΣJ² / batch, J[b,i,k] = f′(h[b,k])·W[i,k].
type ContractiveAutoEncoder struct {
	ContiguousLayer
	visible     *tensor.Tensor
	contraction float64
	recon       cost.Kind
	decAct      Activation
}

// ContractiveConfig configures a ContractiveAutoEncoder.
type ContractiveConfig struct {
	ContiguousConfig
	// ContractionRate scales the Jacobian penalty. Zero disables it.
	ContractionRate float64
	// ReconstructionCost defaults to cross-entropy.
	ReconstructionCost       cost.Kind
	InitialVisibleThresholds *tensor.Tensor
}

// NewContractiveAutoEncoder creates a contractive autoencoder layer.
func NewContractiveAutoEncoder(cfg ContractiveConfig) (*ContractiveAutoEncoder, error) {
	if cfg.Activation == "" {
		cfg.Activation = Sigmoid
	}
	if cfg.ContractionRate < 0 {
		return nil, fmt.Errorf("layer %s: contraction rate %g must be >= 0", cfg.ID, cfg.ContractionRate)
	}
	recon, err := cost.ParseKind(string(cfg.ReconstructionCost))
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", cfg.ID, err)
	}

	l, err := newContiguous(KindContractiveAE, cfg.ContiguousConfig)
	if err != nil {
		return nil, err
	}
	visible, err := visibleThresholds(cfg.ID, cfg.InitialVisibleThresholds, tensor.Shape{cfg.InputSize[1]})
	if err != nil {
		return nil, err
	}

	ae := &ContractiveAutoEncoder{
		ContiguousLayer: *l,
		visible:         visible,
		contraction:     cfg.ContractionRate,
		recon:           recon,
		decAct:          decoderActivation(recon, l.act),
	}
	ae.newOptimizer(cfg.LearningRate, cfg.MomentumRate, ae.weights, ae.thresholds, ae.visible)
	return ae, nil
}

// Parameters returns weights, hidden thresholds and visible thresholds.
func (l *ContractiveAutoEncoder) Parameters() []Parameter {
	return []Parameter{
		{Name: ParamWeights, Tensor: l.weights},
		{Name: ParamThresholds, Tensor: l.thresholds},
		{Name: ParamVisibleThresholds, Tensor: l.visible},
	}
}

// VisibleThresholds returns the decoder thresholds.
func (l *ContractiveAutoEncoder) VisibleThresholds() *tensor.Tensor { return l.visible }

// ContractionRate returns the Jacobian penalty scale.
func (l *ContractiveAutoEncoder) ContractionRate() float64 { return l.contraction }

// ReconstructionCost returns the cost used against the input.
func (l *ContractiveAutoEncoder) ReconstructionCost() cost.Kind { return l.recon }

// Backward propagates through the encoder only. The visible thresholds get
// no gradient.
func (l *ContractiveAutoEncoder) Backward(trace *Trace, gradOutput *tensor.Tensor) (*tensor.Tensor, []*tensor.Tensor) {
	gradIn, grads := l.ContiguousLayer.Backward(trace, gradOutput)
	return gradIn, append(grads, nil)
}

func (l *ContractiveAutoEncoder) decode(h *tensor.Tensor) *tensor.Tensor {
	r := l.be.MatMulTransB(h, l.weights)
	l.be.AddRowVector(r, l.visible)
	l.decAct.ApplyTo(r)
	return r
}

// Reconstruct returns the deterministic reconstruction of input.
func (l *ContractiveAutoEncoder) Reconstruct(input *tensor.Tensor) *tensor.Tensor {
	return l.decode(l.activated(l.asInput(input)))
}

// Jacobian returns J[b,i,k] = f′(h[b,k])·W[i,k] for the deterministic
// encoding of input.
func (l *ContractiveAutoEncoder) Jacobian(input *tensor.Tensor) *tensor.Tensor {
	a := l.activated(l.asInput(input))
	return cost.JacobianFromDerivative(l.act.DerivativeOf(a), l.weights)
}

// Updates computes the costs and the gradients of weights, thresholds and
// visible thresholds for one mini-batch.
func (l *ContractiveAutoEncoder) Updates(input *tensor.Tensor) (Costs, []*tensor.Tensor) {
	x := l.asInput(input)
	a := l.activated(x)
	mask := l.drawMask()
	h := applyMask(a, mask)
	xHat := l.decode(h)

	var costs Costs
	var dr *tensor.Tensor
	costs.Reconstruction, dr = l.recon.Evaluate(x, xHat)
	l.decAct.Backward(dr, xHat)

	gradVisible := l.be.SumRows(dr)
	gradW := l.be.MatMulTransA(dr, h)
	da := l.be.MatMul(dr, l.weights)
	multiplyMask(da, mask)

	if l.contraction > 0 {
		var gradDeriv, gradWJ *tensor.Tensor
		costs.Jacobian, gradDeriv, gradWJ = cost.Contraction(l.act.DerivativeOf(a), l.weights, l.contraction)
		floats.Add(gradW.Data(), gradWJ.Data())
		dd, ad, gd := da.Data(), a.Data(), gradDeriv.Data()
		for i := range dd {
			dd[i] += gd[i] * l.act.DerivativeSlope(ad[i])
		}
	}

	l.act.Backward(da, a)
	floats.Add(gradW.Data(), l.be.MatMulTransA(x, da).Data())
	gradB := l.be.SumRows(da)

	return costs, []*tensor.Tensor{gradW, gradB, gradVisible}
}

// Train applies one gradient step on input.
func (l *ContractiveAutoEncoder) Train(input *tensor.Tensor) Costs {
	costs, grads := l.Updates(input)
	l.GradientStep(grads)
	return costs
}

// Promote returns a ContiguousLayer carrying a copy of the encoder.
func (l *ContractiveAutoEncoder) Promote() (Layer, error) {
	plain, err := NewContiguousLayer(ContiguousConfig{
		Options:    l.promotedOptions(),
		InputSize:  l.inputSize,
		NumNeurons: l.NumNeurons(),
	})
	if err != nil {
		return nil, err
	}
	return plain, nil
}

// Definition describes the layer for checkpoints.
func (l *ContractiveAutoEncoder) Definition() Definition {
	d := l.ContiguousLayer.Definition()
	d.ContractionRate = l.contraction
	d.ReconstructionCost = l.recon
	return d
}

// promotedOptions carries the encoder settings and parameters over to a
// plain layer.
func (b *base) promotedOptions() Options {
	return Options{
		ID:                b.id,
		LearningRate:      b.LearningRate(),
		MomentumRate:      b.MomentumRate(),
		Dropout:           b.dropout,
		Activation:        b.act,
		InitialWeights:    b.weights,
		InitialThresholds: b.thresholds,
		Rand:              b.rng,
		Backend:           b.be,
	}
}
