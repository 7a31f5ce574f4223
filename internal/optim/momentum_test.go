package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/saenet/internal/tensor"
)

// TestMomentum_UpdateRule follows two steps by hand.
func TestMomentum_UpdateRule(t *testing.T) {
	w := tensor.MustFromSlice([]float64{1, 2}, tensor.Shape{2})
	opt := NewMomentum([]*tensor.Tensor{w}, MomentumConfig{LearningRate: 0.1, MomentumRate: 0.5})

	g := tensor.MustFromSlice([]float64{1, -2}, tensor.Shape{2})

	// v = -0.1*g = [-0.1, 0.2]; w = [0.9, 2.2]
	opt.Step([]*tensor.Tensor{g})
	assert.InDelta(t, 0.9, w.Data()[0], 1e-12)
	assert.InDelta(t, 2.2, w.Data()[1], 1e-12)

	// v = 0.5*v - 0.1*g = [-0.15, 0.3]; w = [0.75, 2.5]
	opt.Step([]*tensor.Tensor{g})
	assert.InDelta(t, 0.75, w.Data()[0], 1e-12)
	assert.InDelta(t, 2.5, w.Data()[1], 1e-12)
	assert.InDelta(t, -0.15, opt.Velocities()[0].Data()[0], 1e-12)
	assert.Equal(t, int64(2), opt.Steps())
}

func TestMomentum_NilGradientSkips(t *testing.T) {
	w := tensor.MustFromSlice([]float64{1}, tensor.Shape{1})
	b := tensor.MustFromSlice([]float64{5}, tensor.Shape{1})
	opt := NewMomentum([]*tensor.Tensor{w, b}, MomentumConfig{LearningRate: 1})

	opt.Step([]*tensor.Tensor{tensor.MustFromSlice([]float64{2}, tensor.Shape{1}), nil})
	assert.Equal(t, -1.0, w.Data()[0])
	assert.Equal(t, 5.0, b.Data()[0])

	assert.Panics(t, func() { opt.Step([]*tensor.Tensor{nil}) })
}

func TestMomentum_ResetAndLoad(t *testing.T) {
	w := tensor.Zeros(tensor.Shape{2, 2})
	opt := NewMomentum([]*tensor.Tensor{w}, MomentumConfig{LearningRate: 0.5, MomentumRate: 0.9})
	opt.Step([]*tensor.Tensor{tensor.Full(tensor.Shape{2, 2}, 1)})
	assert.InDelta(t, -0.5, opt.Velocities()[0].At(1, 1), 1e-12)

	opt.Reset()
	assert.Equal(t, 0.0, opt.Velocities()[0].Sum())
	assert.Equal(t, int64(0), opt.Steps())

	require.NoError(t, opt.LoadVelocities([]*tensor.Tensor{tensor.Full(tensor.Shape{2, 2}, 3)}))
	assert.Equal(t, 12.0, opt.Velocities()[0].Sum())

	assert.Error(t, opt.LoadVelocities([]*tensor.Tensor{tensor.Zeros(tensor.Shape{4})}))
}

func TestMomentumConfig_Validate(t *testing.T) {
	assert.NoError(t, MomentumConfig{LearningRate: 0.01, MomentumRate: 0.3}.Validate())
	assert.Error(t, MomentumConfig{LearningRate: 0}.Validate())
	assert.Error(t, MomentumConfig{LearningRate: 0.1, MomentumRate: 1}.Validate())
}
