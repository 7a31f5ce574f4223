package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/saenet/internal/cost"
	"github.com/born-ml/saenet/internal/tensor"
)

func newTestContractive(t *testing.T, recon cost.Kind, contraction float64) *ContractiveAutoEncoder {
	t.Helper()
	ae, err := NewContractiveAutoEncoder(ContractiveConfig{
		ContiguousConfig: ContiguousConfig{
			Options:    Options{ID: "f3", LearningRate: 0.1, MomentumRate: 0.3, Rand: rand.New(rand.NewSource(21))},
			InputSize:  tensor.Shape{4, 6},
			NumNeurons: 3,
		},
		ContractionRate:    contraction,
		ReconstructionCost: recon,
	})
	require.NoError(t, err)
	return ae
}

func newTestConvAE(t *testing.T, recon cost.Kind) *ConvolutionalAutoEncoder {
	t.Helper()
	ae, err := NewConvolutionalAutoEncoder(ConvolutionalAEConfig{
		ConvolutionalConfig: ConvolutionalConfig{
			Options:    Options{ID: "c1", LearningRate: 0.05, MomentumRate: 0.3, Rand: rand.New(rand.NewSource(22))},
			InputSize:  tensor.Shape{2, 2, 7, 6},
			KernelSize: tensor.Shape{3, 2, 3, 3},
			Downsample: [2]int{2, 2},
		},
		ReconstructionCost: recon,
	})
	require.NoError(t, err)
	return ae
}

func checkUpdates(t *testing.T, ae AutoEncoder, x *tensor.Tensor, tol float64) {
	t.Helper()
	_, grads := ae.Updates(x)
	params := ae.Parameters()
	require.Len(t, grads, len(params))

	total := func() float64 {
		c, _ := ae.Updates(x)
		return c.Total()
	}
	for i, p := range params {
		numeric := numericGrad(p.Tensor, total)
		assert.True(t, floats.EqualApprox(grads[i].Data(), numeric, tol),
			"%s gradient mismatch:\nanalytic %v\nnumeric  %v", p.Name, grads[i].Data(), numeric)
	}
}

func TestContractiveAutoEncoder_Defaults(t *testing.T) {
	ae := newTestContractive(t, "", 0.5)
	assert.Equal(t, KindContractiveAE, ae.Kind())
	assert.Equal(t, Sigmoid, ae.Activation())
	assert.Equal(t, cost.KindCrossEntropy, ae.ReconstructionCost())
	assert.Equal(t, tensor.Shape{4, 3}, ae.OutputSize())
	assert.Len(t, ae.Parameters(), 3)
	assert.Equal(t, tensor.Shape{6}, ae.VisibleThresholds().Shape())
}

func TestContractiveAutoEncoder_UpdatesMatchFiniteDifference(t *testing.T) {
	x := uniform(rand.New(rand.NewSource(23)), tensor.Shape{4, 6}, 0.05, 0.95)

	t.Run("cross entropy with contraction", func(t *testing.T) {
		checkUpdates(t, newTestContractive(t, cost.KindCrossEntropy, 0.7), x, 1e-5)
	})
	t.Run("mean squared without contraction", func(t *testing.T) {
		checkUpdates(t, newTestContractive(t, cost.KindMeanSquared, 0), x, 1e-5)
	})
	t.Run("mean squared with contraction", func(t *testing.T) {
		checkUpdates(t, newTestContractive(t, cost.KindMeanSquared, 2), x, 1e-5)
	})
}

func TestContractiveAutoEncoder_JacobianCost(t *testing.T) {
	ae := newTestContractive(t, cost.KindCrossEntropy, 0.25)
	x := uniform(rand.New(rand.NewSource(24)), tensor.Shape{4, 6}, 0, 1)

	costs, _ := ae.Updates(x)
	j := ae.Jacobian(x)
	assert.Equal(t, tensor.Shape{4, 6, 3}, j.Shape())
	assert.InDelta(t, 0.25*floats.Dot(j.Data(), j.Data())/4, costs.Jacobian, 1e-12)

	// With a sigmoid encoder it equals the a(1-a)·W closed form.
	a := ae.ForwardInference(x)
	assert.True(t, j.AllClose(cost.Jacobian(a, ae.Weights()), 1e-12))

	noPenalty := newTestContractive(t, cost.KindCrossEntropy, 0)
	c, _ := noPenalty.Updates(x)
	assert.Equal(t, 0.0, c.Jacobian)
}

func TestConvolutionalAutoEncoder_UpdatesMatchFiniteDifference(t *testing.T) {
	x := uniform(rand.New(rand.NewSource(25)), tensor.Shape{2, 2, 7, 6}, 0.05, 0.95)

	t.Run("cross entropy", func(t *testing.T) {
		checkUpdates(t, newTestConvAE(t, cost.KindCrossEntropy), x, 1e-5)
	})
	t.Run("mean squared", func(t *testing.T) {
		checkUpdates(t, newTestConvAE(t, cost.KindMeanSquared), x, 1e-5)
	})
}

func TestConvolutionalAutoEncoder_Reconstruct(t *testing.T) {
	ae := newTestConvAE(t, cost.KindCrossEntropy)
	x := uniform(rand.New(rand.NewSource(26)), ae.InputSize(), 0, 1)
	r := ae.Reconstruct(x)
	assert.Equal(t, ae.InputSize(), r.Shape())
	for _, v := range r.Data() {
		assert.True(t, v > 0 && v < 1, "sigmoid decoder output %g", v)
	}
	assert.Equal(t, tensor.Shape{2}, ae.VisibleThresholds().Shape())
}

// TestAutoEncoder_TrainReducesCost runs repeated steps on one batch.
func TestAutoEncoder_TrainReducesCost(t *testing.T) {
	rng := rand.New(rand.NewSource(27))

	cae := newTestContractive(t, cost.KindCrossEntropy, 0.1)
	x := uniform(rng, cae.InputSize(), 0, 1)
	first := cae.Train(x).Total()
	var last float64
	for i := 0; i < 200; i++ {
		last = cae.Train(x).Total()
	}
	assert.Less(t, last, first)

	conv := newTestConvAE(t, cost.KindMeanSquared)
	xc := uniform(rng, conv.InputSize(), 0, 1)
	firstC := conv.Train(xc).Total()
	var lastC float64
	for i := 0; i < 100; i++ {
		lastC = conv.Train(xc).Total()
	}
	assert.Less(t, lastC, firstC)
}

func TestAutoEncoder_Promote(t *testing.T) {
	rng := rand.New(rand.NewSource(28))
	encoders := []AutoEncoder{
		newTestContractive(t, cost.KindCrossEntropy, 0.1),
		newTestConvAE(t, cost.KindCrossEntropy),
	}

	for _, ae := range encoders {
		t.Run(string(ae.Kind()), func(t *testing.T) {
			x := uniform(rng, ae.InputSize(), 0, 1)
			ae.Train(x)

			plain, err := ae.Promote()
			require.NoError(t, err)
			assert.False(t, plain.Kind().IsAutoEncoder())
			assert.Equal(t, ae.ID(), plain.ID())
			assert.Equal(t, ae.OutputSize(), plain.OutputSize())
			assert.Equal(t, ae.LearningRate(), plain.LearningRate())
			assert.Len(t, plain.Parameters(), 2)
			assert.True(t, ae.ForwardInference(x).Equal(plain.ForwardInference(x)))

			// The promoted layer owns a copy of the weights.
			plain.Parameters()[0].Tensor.Data()[0] += 1
			assert.NotEqual(t, plain.Parameters()[0].Tensor.Data()[0], ae.Parameters()[0].Tensor.Data()[0])
		})
	}
}

func TestAutoEncoder_EncoderBackwardLeavesVisibleThresholds(t *testing.T) {
	ae := newTestContractive(t, cost.KindCrossEntropy, 0)
	x := uniform(rand.New(rand.NewSource(29)), ae.InputSize(), 0, 1)
	_, trace := ae.ForwardTraining(x)
	_, grads := ae.Backward(trace, tensor.Full(ae.OutputSize(), 1))
	require.Len(t, grads, 3)
	assert.Nil(t, grads[2])

	visible := ae.VisibleThresholds().Clone()
	ae.GradientStep(grads)
	assert.True(t, visible.Equal(ae.VisibleThresholds()))
}
