package nn

import (
	"math"
	"math/rand"
	"time"

	"github.com/born-ml/saenet/internal/tensor"
)

// XavierUniform fills a tensor of the given shape from
// U(-sqrt(6/(fanIn+fanOut)), +sqrt(6/(fanIn+fanOut))).
//
// Paper: "Understanding the difficulty of training deep feedforward neural networks"
// (Glorot & Bengio, 2010).
func XavierUniform(rng *rand.Rand, shape tensor.Shape, fanIn, fanOut float64) *tensor.Tensor {
	bound := math.Sqrt(6.0 / (fanIn + fanOut))
	t := tensor.Zeros(shape)
	d := t.Data()
	for i := range d {
		d[i] = (rng.Float64()*2 - 1) * bound
	}
	return t
}

// newRand returns rng, or a time-seeded generator when rng is nil.
func newRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	//nolint:gosec // G404: weight init does not need a cryptographic source
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
