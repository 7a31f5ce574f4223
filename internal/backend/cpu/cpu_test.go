package cpu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/saenet/internal/parallel"
	"github.com/born-ml/saenet/internal/tensor"
)

func randTensor(rng *rand.Rand, shape tensor.Shape) *tensor.Tensor {
	t := tensor.Zeros(shape)
	for i := range t.Data() {
		t.Data()[i] = rng.Float64()*2 - 1
	}
	return t
}

// naiveConv2D is the direct definition of a valid stride-1 convolution.
func naiveConv2D(x, w *tensor.Tensor) *tensor.Tensor {
	xs, ws := x.Shape(), w.Shape()
	ho, wo := xs[2]-ws[2]+1, xs[3]-ws[3]+1
	out := tensor.Zeros(tensor.Shape{xs[0], ws[0], ho, wo})
	for n := 0; n < xs[0]; n++ {
		for k := 0; k < ws[0]; k++ {
			for i := 0; i < ho; i++ {
				for j := 0; j < wo; j++ {
					sum := 0.0
					for c := 0; c < xs[1]; c++ {
						for p := 0; p < ws[2]; p++ {
							for q := 0; q < ws[3]; q++ {
								sum += x.At(n, c, i+p, j+q) * w.At(k, c, p, q)
							}
						}
					}
					out.Set(sum, n, k, i, j)
				}
			}
		}
	}
	return out
}

func TestMatMul(t *testing.T) {
	cpu := New()
	a := tensor.MustFromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := tensor.MustFromSlice([]float64{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	c := cpu.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, c.Shape())
	assert.Equal(t, []float64{58, 64, 139, 154}, c.Data())

	// aᵀ·a is (3, 3)
	ata := cpu.MatMulTransA(a, a)
	assert.Equal(t, tensor.Shape{3, 3}, ata.Shape())
	assert.Equal(t, 17.0, ata.At(0, 0))
	assert.Equal(t, 22.0, ata.At(0, 1))

	// a·aᵀ is (2, 2)
	aat := cpu.MatMulTransB(a, a)
	assert.Equal(t, []float64{14, 32, 32, 77}, aat.Data())

	assert.Panics(t, func() { cpu.MatMul(a, a) })
}

func TestAddRowVectorAndSumRows(t *testing.T) {
	cpu := New()
	x := tensor.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	cpu.AddRowVector(x, tensor.MustFromSlice([]float64{10, 20}, tensor.Shape{2}))
	assert.Equal(t, []float64{11, 22, 13, 24}, x.Data())
	assert.Equal(t, []float64{24, 46}, cpu.SumRows(x).Data())
}

func TestConv2D_MatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, cfg := range []parallel.Config{parallel.Sequential(), {Enabled: true, NumWorkers: 3, MinChunkSize: 1}} {
		cpu := NewWithConfig(cfg)
		x := randTensor(rng, tensor.Shape{3, 2, 7, 6})
		w := randTensor(rng, tensor.Shape{4, 2, 3, 2})

		got := cpu.Conv2D(x, w)
		want := naiveConv2D(x, w)
		assert.Equal(t, tensor.Shape{3, 4, 5, 5}, got.Shape())
		assert.True(t, got.AllClose(want, 1e-12))
	}
}

// TestConv2D_Backward checks both gradients through the adjoint identity
// <conv(x, w), g> = <x, dX(g, w)> = <w, dW(x, g)>.
func TestConv2D_Backward(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	cpu := New()
	x := randTensor(rng, tensor.Shape{2, 3, 6, 5})
	w := randTensor(rng, tensor.Shape{2, 3, 3, 3})
	y := cpu.Conv2D(x, w)
	g := randTensor(rng, y.Shape())

	lhs := floats.Dot(y.Data(), g.Data())

	dx := cpu.Conv2DInputBackward(g, w, x.Shape())
	require.Equal(t, x.Shape(), dx.Shape())
	assert.InDelta(t, lhs, floats.Dot(x.Data(), dx.Data()), 1e-9)

	dw := cpu.Conv2DKernelBackward(x, g, w.Shape())
	require.Equal(t, w.Shape(), dw.Shape())
	assert.InDelta(t, lhs, floats.Dot(w.Data(), dw.Data()), 1e-9)
}

func TestConv2D_Panics(t *testing.T) {
	cpu := New()
	assert.Panics(t, func() {
		cpu.Conv2D(tensor.Zeros(tensor.Shape{1, 2, 4, 4}), tensor.Zeros(tensor.Shape{1, 3, 2, 2}))
	})
	assert.Panics(t, func() {
		cpu.Conv2D(tensor.Zeros(tensor.Shape{1, 1, 2, 2}), tensor.Zeros(tensor.Shape{1, 1, 3, 3}))
	})
}

func TestMaxPool2D(t *testing.T) {
	cpu := New()
	// One 4x5 map pooled by (2, 2): the last column is ignored.
	x := tensor.MustFromSlice([]float64{
		1, 5, 2, 0, 9,
		3, 4, 8, 1, 9,
		0, 0, 1, 1, 9,
		7, 0, 1, 6, 9,
	}, tensor.Shape{1, 1, 4, 5})

	out, idx := cpu.MaxPool2D(x, 2, 2)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float64{5, 8, 7, 6}, out.Data())
	assert.Equal(t, []int{1, 7, 15, 18}, idx)

	g := tensor.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	dx := cpu.MaxPool2DBackward(g, idx, x.Shape())
	assert.Equal(t, 1.0, dx.At(0, 0, 0, 1))
	assert.Equal(t, 2.0, dx.At(0, 0, 1, 2))
	assert.Equal(t, 3.0, dx.At(0, 0, 3, 0))
	assert.Equal(t, 4.0, dx.At(0, 0, 3, 3))
	assert.InDelta(t, 10.0, dx.Sum(), 1e-12)
}

func TestMaxPool2D_NonSquare(t *testing.T) {
	cpu := New()
	x := tensor.MustFromSlice([]float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}, tensor.Shape{1, 1, 2, 4})
	out, _ := cpu.MaxPool2D(x, 1, 2)
	assert.Equal(t, []float64{2, 4, 6, 8}, out.Data())
}

func TestUpsampleNearest_Adjoint(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cpu := New()
	h := randTensor(rng, tensor.Shape{2, 3, 2, 3})
	full := tensor.Shape{2, 3, 5, 7}

	u := cpu.UpsampleNearest(h, 2, 2, full)
	assert.Equal(t, h.At(1, 2, 1, 2), u.At(1, 2, 3, 5))
	assert.Equal(t, 0.0, u.At(0, 0, 4, 0), "border row stays zero")

	g := randTensor(rng, full)
	back := cpu.UpsampleNearestBackward(g, 2, 2, h.Shape())
	assert.InDelta(t, floats.Dot(u.Data(), g.Data()), floats.Dot(h.Data(), back.Data()), 1e-9)
}
