package nn

import (
	"github.com/born-ml/saenet/internal/cost"
	"github.com/born-ml/saenet/internal/tensor"
)

// Costs are the scalar terms produced by one autoencoder update.
type Costs struct {
	Reconstruction float64
	// Jacobian is the contraction penalty, zero for layers without one.
	Jacobian float64
}

// Total returns the optimised objective.
func (c Costs) Total() float64 {
	return c.Reconstruction + c.Jacobian
}

// AutoEncoder is a layer with a tied-weight decode path, trained greedily
// to reconstruct its own input.
//
// Its forward methods produce the encoding consumed by the next layer of a
// stack. Plain networks do not accept autoencoders; Promote converts one into
// the equivalent plain layer for supervised fine-tuning.
type AutoEncoder interface {
	Layer

	// Updates computes the reconstruction (and contraction) cost of the
	// input and the gradient of every parameter without applying them.
	Updates(input *tensor.Tensor) (Costs, []*tensor.Tensor)

	// Train applies one gradient step from Updates and returns its costs.
	Train(input *tensor.Tensor) Costs

	// Reconstruct encodes and decodes input deterministically.
	Reconstruct(input *tensor.Tensor) *tensor.Tensor

	// Promote returns the plain layer with a copy of the trained encoder
	// weights, thresholds and settings.
	Promote() (Layer, error)

	ReconstructionCost() cost.Kind
}

// decoderActivation picks the output nonlinearity of the decode path.
// Cross-entropy needs outputs in (0, 1).
func decoderActivation(kind cost.Kind, encoder Activation) Activation {
	if kind == cost.KindCrossEntropy {
		return Sigmoid
	}
	return encoder
}

func visibleThresholds(id string, initial *tensor.Tensor, shape tensor.Shape) (*tensor.Tensor, error) {
	if initial == nil {
		return tensor.Zeros(shape), nil
	}
	if !initial.Shape().Equal(shape) {
		return nil, shapeErr(id, "initial visible thresholds", initial.Shape(), shape)
	}
	return initial.Clone(), nil
}

// multiplyMask multiplies g in place by the per-sample dropout mask.
func multiplyMask(g *tensor.Tensor, mask []float64) {
	if mask == nil {
		return
	}
	d := g.Data()
	for i := range d {
		d[i] *= mask[i%len(mask)]
	}
}
