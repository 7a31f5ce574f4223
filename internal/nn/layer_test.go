package nn

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/saenet/internal/cost"
	"github.com/born-ml/saenet/internal/tensor"
)

func uniform(rng *rand.Rand, shape tensor.Shape, lo, hi float64) *tensor.Tensor {
	t := tensor.Zeros(shape)
	for i := range t.Data() {
		t.Data()[i] = lo + (hi-lo)*rng.Float64()
	}
	return t
}

// numericGrad differentiates f with respect to the elements of x.
func numericGrad(x *tensor.Tensor, f func() float64) []float64 {
	orig := append([]float64(nil), x.Data()...)
	g := fd.Gradient(nil, func(v []float64) float64 {
		copy(x.Data(), v)
		return f()
	}, orig, &fd.Settings{Formula: fd.Central})
	copy(x.Data(), orig)
	return g
}

// weightedSum is a scalar probe loss sum(coef * y) whose gradient with
// respect to y is coef.
func weightedSum(y, coef *tensor.Tensor) float64 {
	return floats.Dot(y.Data(), coef.Data())
}

func newTestConv(t *testing.T, seed int64, dropout float64) *ConvolutionalLayer {
	t.Helper()
	l, err := NewConvolutionalLayer(ConvolutionalConfig{
		Options:    Options{ID: "c1", LearningRate: 0.05, MomentumRate: 0.3, Dropout: dropout, Rand: rand.New(rand.NewSource(seed))},
		InputSize:  tensor.Shape{2, 2, 7, 6},
		KernelSize: tensor.Shape{3, 2, 3, 3},
		Downsample: [2]int{2, 2},
	})
	require.NoError(t, err)
	return l
}

func newTestContiguous(t *testing.T, seed int64, dropout float64) *ContiguousLayer {
	t.Helper()
	l, err := NewContiguousLayer(ContiguousConfig{
		Options:    Options{ID: "f1", LearningRate: 0.05, MomentumRate: 0.3, Dropout: dropout, Rand: rand.New(rand.NewSource(seed))},
		InputSize:  tensor.Shape{3, 5},
		NumNeurons: 4,
	})
	require.NoError(t, err)
	return l
}

// TestConvolutionalLayer_Sizes checks feature and output sizes.
func TestConvolutionalLayer_Sizes(t *testing.T) {
	tests := []struct {
		name        string
		input       tensor.Shape
		kernel      tensor.Shape
		downsample  [2]int
		wantFeature tensor.Shape
		wantOutput  tensor.Shape
	}{
		{"lenet c1", tensor.Shape{5, 1, 28, 28}, tensor.Shape{6, 1, 5, 5}, [2]int{2, 2}, tensor.Shape{5, 6, 24, 24}, tensor.Shape{5, 6, 12, 12}},
		{"odd dims floor", tensor.Shape{1, 3, 11, 9}, tensor.Shape{4, 3, 3, 2}, [2]int{2, 3}, tensor.Shape{1, 4, 9, 8}, tensor.Shape{1, 4, 4, 2}},
		{"no pooling", tensor.Shape{2, 1, 6, 6}, tensor.Shape{2, 1, 3, 3}, [2]int{}, tensor.Shape{2, 2, 4, 4}, tensor.Shape{2, 2, 4, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewConvolutionalLayer(ConvolutionalConfig{
				Options:    Options{ID: "c", Rand: rand.New(rand.NewSource(1))},
				InputSize:  tt.input,
				KernelSize: tt.kernel,
				Downsample: tt.downsample,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantFeature, l.FeatureSize())
			assert.Equal(t, tt.wantOutput, l.OutputSize())
			assert.Equal(t, tt.input, l.InputSize())
			assert.Equal(t, KindConvolutional, l.Kind())

			y := l.ForwardInference(tensor.Zeros(tt.input))
			assert.Equal(t, tt.wantOutput, y.Shape())
		})
	}
}

func TestConvolutionalLayer_ShapeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		input  tensor.Shape
		kernel tensor.Shape
	}{
		{"kernel equals input", tensor.Shape{1, 1, 5, 5}, tensor.Shape{2, 1, 5, 5}},
		{"kernel rows equal input rows", tensor.Shape{1, 1, 5, 8}, tensor.Shape{2, 1, 5, 3}},
		{"channel mismatch", tensor.Shape{1, 3, 8, 8}, tensor.Shape{2, 1, 3, 3}},
		{"kernel larger than input", tensor.Shape{1, 1, 4, 4}, tensor.Shape{2, 1, 6, 2}},
		{"3D input", tensor.Shape{1, 8, 8}, tensor.Shape{2, 1, 3, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConvolutionalLayer(ConvolutionalConfig{
				Options: Options{ID: "c"}, InputSize: tt.input, KernelSize: tt.kernel,
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)
		})
	}
}

func TestContiguousLayer_Forward(t *testing.T) {
	w := tensor.MustFromSlice([]float64{
		1, 0,
		0, 1,
		1, 1,
	}, tensor.Shape{3, 2})
	b := tensor.MustFromSlice([]float64{0.5, -0.5}, tensor.Shape{2})
	l, err := NewContiguousLayer(ContiguousConfig{
		Options:    Options{ID: "f", Activation: Identity, InitialWeights: w, InitialThresholds: b},
		InputSize:  tensor.Shape{2, 3},
		NumNeurons: 2,
	})
	require.NoError(t, err)

	x := tensor.MustFromSlice([]float64{1, 2, 3, 0, 0, 1}, tensor.Shape{2, 3})
	y := l.ForwardInference(x)
	assert.Equal(t, []float64{4.5, 4.5, 1.5, 0.5}, y.Data())

	// The layer keeps its own copy of the initial values.
	w.Data()[0] = 100
	assert.Equal(t, 1.0, l.Weights().Data()[0])
}

func TestContiguousLayer_InvalidConfig(t *testing.T) {
	_, err := NewContiguousLayer(ContiguousConfig{Options: Options{ID: "f"}, InputSize: tensor.Shape{2, 3, 4}, NumNeurons: 2})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = NewContiguousLayer(ContiguousConfig{
		Options:   Options{ID: "f", InitialWeights: tensor.Zeros(tensor.Shape{2, 3})},
		InputSize: tensor.Shape{2, 3}, NumNeurons: 2,
	})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = NewContiguousLayer(ContiguousConfig{Options: Options{ID: "f", Dropout: 1.5}, InputSize: tensor.Shape{2, 3}, NumNeurons: 2})
	assert.Error(t, err)

	_, err = NewContiguousLayer(ContiguousConfig{Options: Options{ID: "f", MomentumRate: 1}, InputSize: tensor.Shape{2, 3}, NumNeurons: 2})
	assert.Error(t, err)

	_, err = NewContiguousLayer(ContiguousConfig{Options: Options{}, InputSize: tensor.Shape{2, 3}, NumNeurons: 2})
	assert.Error(t, err, "id required")
}

// TestForwardInference_Deterministic runs the inference path twice with
// dropout configured.
func TestForwardInference_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	conv := newTestConv(t, 1, 0.5)
	x := uniform(rng, conv.InputSize(), -1, 1)
	assert.True(t, conv.ForwardInference(x).Equal(conv.ForwardInference(x)))

	fc := newTestContiguous(t, 2, 0.8)
	xf := uniform(rng, fc.InputSize(), -1, 1)
	assert.True(t, fc.ForwardInference(xf).Equal(fc.ForwardInference(xf)))
}

func TestDropout_InferenceScalesByKeepProbability(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	with := newTestContiguous(t, 9, 0.8)
	without := newTestContiguous(t, 9, 0)
	assert.Equal(t, 0.8, with.Dropout())
	assert.Equal(t, 0.0, without.Dropout())
	x := uniform(rng, with.InputSize(), -1, 1)

	a := with.ForwardInference(x).Data()
	b := without.ForwardInference(x).Data()
	for i := range a {
		assert.InDelta(t, 0.8*b[i], a[i], 1e-12)
	}
}

func TestDropout_TrainingMask(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	l := newTestContiguous(t, 3, 0.5)
	x := uniform(rng, l.InputSize(), 0.1, 1)

	var zeroed, kept int
	for trial := 0; trial < 50; trial++ {
		y, trace := l.ForwardTraining(x)
		ref := trace.Output()
		for b := 0; b < 3; b++ {
			for k := 0; k < 4; k++ {
				v := y.At(b, k)
				if v == 0 {
					zeroed++
					// The mask is shared by every sample of the batch.
					assert.Equal(t, 0.0, y.At(0, k))
				} else {
					kept++
					assert.Equal(t, ref.At(b, k), v, "kept units pass through unscaled")
				}
			}
		}
	}
	assert.Greater(t, zeroed, 0)
	assert.Greater(t, kept, 0)

	// Without dropout the training path equals the inference path.
	plain := newTestContiguous(t, 3, 0)
	y, _ := plain.ForwardTraining(x)
	assert.True(t, y.Equal(plain.ForwardInference(x)))
}

func TestContiguousLayer_BackwardMatchesFiniteDifference(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	l := newTestContiguous(t, 4, 0)
	x := uniform(rng, l.InputSize(), -1, 1)
	coef := uniform(rng, l.OutputSize(), -1, 1)

	_, trace := l.ForwardTraining(x)
	gradIn, grads := l.Backward(trace, coef)
	require.Len(t, grads, 2)

	loss := func() float64 { return weightedSum(l.ForwardInference(x), coef) }
	assert.True(t, floats.EqualApprox(grads[0].Data(), numericGrad(l.Weights(), loss), 1e-6))
	assert.True(t, floats.EqualApprox(grads[1].Data(), numericGrad(l.Thresholds(), loss), 1e-6))
	assert.True(t, floats.EqualApprox(gradIn.Data(), numericGrad(x, loss), 1e-6))
}

func TestConvolutionalLayer_BackwardMatchesFiniteDifference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := newTestConv(t, 5, 0)
	x := uniform(rng, l.InputSize(), -1, 1)
	coef := uniform(rng, l.OutputSize(), -1, 1)

	_, trace := l.ForwardTraining(x)
	gradIn, grads := l.Backward(trace, coef)
	require.Len(t, grads, 2)
	assert.Equal(t, l.KernelSize(), grads[0].Shape())

	loss := func() float64 { return weightedSum(l.ForwardInference(x), coef) }
	assert.True(t, floats.EqualApprox(grads[0].Data(), numericGrad(l.Weights(), loss), 1e-5))
	assert.True(t, floats.EqualApprox(grads[1].Data(), numericGrad(l.Thresholds(), loss), 1e-5))
	assert.True(t, floats.EqualApprox(gradIn.Data(), numericGrad(x, loss), 1e-5))
}

func TestBackward_RespectsDropoutMask(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	l := newTestContiguous(t, 6, 0.5)
	x := uniform(rng, l.InputSize(), -1, 1)

	y, trace := l.ForwardTraining(x)
	_, grads := l.Backward(trace, tensor.Full(l.OutputSize(), 1))
	for k := 0; k < 4; k++ {
		if y.At(0, k) == 0 && trace.Output().At(0, k) != 0 {
			assert.Equal(t, 0.0, grads[1].At(k), "dropped unit %d gets no threshold gradient", k)
		}
	}
}

func TestGradientStep_MovesParameters(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	l := newTestContiguous(t, 7, 0)
	x := uniform(rng, l.InputSize(), -1, 1)
	before := l.ForwardInference(x)
	w0 := l.Weights().Clone()

	_, trace := l.ForwardTraining(x)
	_, grads := l.Backward(trace, tensor.Full(l.OutputSize(), 1))
	l.GradientStep(grads)

	// momentum starts at zero, so the first step is -lr * grad.
	for i, g := range grads[0].Data() {
		assert.InDelta(t, w0.Data()[i]-0.05*g, l.Weights().Data()[i], 1e-12)
	}
	assert.False(t, before.Equal(l.ForwardInference(x)))
}

func TestXavierUniform_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	w := XavierUniform(rng, tensor.Shape{50, 40}, 50, 40)
	bound := math.Sqrt(6.0 / 90.0)
	for _, v := range w.Data() {
		assert.LessOrEqual(t, math.Abs(v), bound)
	}
	assert.InDelta(t, 0, w.Sum()/float64(w.Len()), 0.05)
}

func TestConvolutionalLayer_XavierFans(t *testing.T) {
	l := newTestConv(t, 11, 0)
	// fanIn = 2*3*3 = 18, fanOut = 3*3*3/(2*2) = 6.75
	bound := math.Sqrt(6 / (18 + 6.75))
	for _, v := range l.Weights().Data() {
		assert.LessOrEqual(t, math.Abs(v), bound)
	}
	assert.Equal(t, 0.0, l.Thresholds().Sum(), "thresholds start at zero")
}

func TestActivation(t *testing.T) {
	act, err := ParseActivation("")
	require.NoError(t, err)
	assert.Equal(t, Tanh, act)
	_, err = ParseActivation("relu6")
	assert.Error(t, err)

	for _, a := range []Activation{Tanh, Sigmoid, Identity} {
		for _, x := range []float64{-1.5, -0.2, 0.3, 2} {
			y := a.Apply(x)
			numeric := fd.Derivative(a.Apply, x, &fd.Settings{Formula: fd.Central})
			assert.InDelta(t, numeric, a.Derivative(y), 1e-6, "%s at %g", a, x)

			slope := fd.Derivative(a.Derivative, y, &fd.Settings{Formula: fd.Central})
			assert.InDelta(t, slope, a.DerivativeSlope(y), 1e-6, "%s slope at %g", a, x)
		}
	}
}

func TestBuild_RebuildsFromDefinition(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	orig := newTestConv(t, 13, 0.5)
	x := uniform(rng, orig.InputSize(), -1, 1)

	params := map[string]*tensor.Tensor{}
	for _, p := range orig.Parameters() {
		params[p.Name] = p.Tensor
	}
	rebuilt, err := Build(orig.Definition(), params, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, orig.Definition(), rebuilt.Definition())
	assert.True(t, orig.ForwardInference(x).Equal(rebuilt.ForwardInference(x)))

	_, err = Build(Definition{Kind: "pooling", ID: "p"}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestBuild_AutoEncoders(t *testing.T) {
	cae, err := NewContractiveAutoEncoder(ContractiveConfig{
		ContiguousConfig:   ContiguousConfig{Options: Options{ID: "f3", Rand: rand.New(rand.NewSource(1))}, InputSize: tensor.Shape{2, 6}, NumNeurons: 3},
		ContractionRate:    0.1,
		ReconstructionCost: cost.KindMeanSquared,
	})
	require.NoError(t, err)

	params := map[string]*tensor.Tensor{}
	for _, p := range cae.Parameters() {
		params[p.Name] = p.Tensor
	}
	rebuilt, err := Build(cae.Definition(), params, nil, nil)
	require.NoError(t, err)
	ae, ok := rebuilt.(AutoEncoder)
	require.True(t, ok)
	assert.Equal(t, cost.KindMeanSquared, ae.ReconstructionCost())
	assert.Equal(t, Sigmoid, ae.Activation())

	x := uniform(rand.New(rand.NewSource(2)), tensor.Shape{2, 6}, 0, 1)
	assert.True(t, cae.Reconstruct(x).Equal(ae.Reconstruct(x)))
}
