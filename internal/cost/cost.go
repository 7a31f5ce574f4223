// Package cost implements the loss and regularisation terms used for
// training: cross-entropy with clipping, mean squared error, L1 and L2
// weight penalties and the Jacobian contraction penalty of contractive
// autoencoders.
//
// Every cost comes with its gradient so layers can run an explicit
// backward pass. Costs over batched tensors treat the leading dimension as
// the batch.
package cost

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/saenet/internal/tensor"
)

// Epsilon bounds estimates away from 0 and 1 before taking logarithms.
const Epsilon = 1e-7

// Kind selects a reconstruction or classification cost.
type Kind string

// Supported cost kinds.
const (
	KindCrossEntropy Kind = "cross_entropy"
	KindMeanSquared  Kind = "mean_squared"
)

// ParseKind converts a configuration string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCrossEntropy, KindMeanSquared:
		return Kind(s), nil
	case "":
		return KindCrossEntropy, nil
	default:
		return "", fmt.Errorf("unknown cost %q", s)
	}
}

// Evaluate computes the cost of estimate against target together with its
// gradient with respect to estimate.
func (k Kind) Evaluate(target, estimate *tensor.Tensor) (float64, *tensor.Tensor) {
	switch k {
	case KindMeanSquared:
		return MeanSquared(target, estimate), MeanSquaredGrad(target, estimate)
	default:
		return CrossEntropy(target, estimate, true), CrossEntropyGrad(target, estimate, true)
	}
}

// CropExtremes returns a copy of x clipped into [Epsilon, 1-Epsilon].
func CropExtremes(x *tensor.Tensor) *tensor.Tensor {
	out := x.Clone()
	d := out.Data()
	for i, v := range d {
		d[i] = clip(v)
	}
	return out
}

func clip(v float64) float64 {
	switch {
	case v < Epsilon:
		return Epsilon
	case v > 1-Epsilon:
		return 1 - Epsilon
	default:
		return v
	}
}

func batchOf(t *tensor.Tensor) int {
	return t.Shape()[0]
}

func checkSameShape(op string, target, estimate *tensor.Tensor) {
	if target.Len() != estimate.Len() {
		panic(fmt.Sprintf("cost.%s: target %v and estimate %v differ", op, target.Shape(), estimate.Shape()))
	}
}

// CrossEntropy returns the binary cross-entropy of estimate q against
// target p, summed over every non-batch element and averaged over the
// batch:
//
//	mean_b( sum_i -(p log q + (1-p) log(1-q)) )
//
// With crop set, q is clipped into [Epsilon, 1-Epsilon] first so the result
// is always finite.
func CrossEntropy(target, estimate *tensor.Tensor, crop bool) float64 {
	checkSameShape("CrossEntropy", target, estimate)
	p, q := target.Data(), estimate.Data()

	var sum float64
	for i, qi := range q {
		if crop {
			qi = clip(qi)
		}
		sum -= p[i]*math.Log(qi) + (1-p[i])*math.Log(1-qi)
	}
	return sum / float64(batchOf(estimate))
}

// CrossEntropyGrad returns d CrossEntropy / d estimate. Elements that were
// clipped have zero gradient.
func CrossEntropyGrad(target, estimate *tensor.Tensor, crop bool) *tensor.Tensor {
	checkSameShape("CrossEntropyGrad", target, estimate)
	grad := tensor.ZerosLike(estimate)
	p, q, g := target.Data(), estimate.Data(), grad.Data()
	scale := 1 / float64(batchOf(estimate))

	for i, qi := range q {
		if crop {
			if qi < Epsilon || qi > 1-Epsilon {
				continue
			}
		}
		g[i] = scale * ((1-p[i])/(1-qi) - p[i]/qi)
	}
	return grad
}

// MeanSquared returns mean((q - p)^2) over every element.
func MeanSquared(target, estimate *tensor.Tensor) float64 {
	checkSameShape("MeanSquared", target, estimate)
	diff := make([]float64, estimate.Len())
	floats.SubTo(diff, estimate.Data(), target.Data())
	return floats.Dot(diff, diff) / float64(len(diff))
}

// MeanSquaredGrad returns d MeanSquared / d estimate.
func MeanSquaredGrad(target, estimate *tensor.Tensor) *tensor.Tensor {
	checkSameShape("MeanSquaredGrad", target, estimate)
	grad := tensor.ZerosLike(estimate)
	floats.SubTo(grad.Data(), estimate.Data(), target.Data())
	floats.Scale(2/float64(estimate.Len()), grad.Data())
	return grad
}

// penaltyScale folds the optional batch normalisation into the scale factor.
// A batchSize <= 0 means no normalisation.
func penaltyScale(batchSize int, scaleFactor float64) float64 {
	if batchSize > 0 {
		return scaleFactor / float64(batchSize)
	}
	return scaleFactor
}

// LeastAbsoluteDeviation is the L1 penalty scaleFactor * sum|a| over all
// tensors, divided by batchSize when it is positive.
func LeastAbsoluteDeviation(params []*tensor.Tensor, batchSize int, scaleFactor float64) float64 {
	var sum float64
	for _, p := range params {
		sum += floats.Norm(p.Data(), 1)
	}
	return sum * penaltyScale(batchSize, scaleFactor)
}

// LeastAbsoluteDeviationGrad returns the subgradient of
// LeastAbsoluteDeviation for one tensor (zero at zero).
func LeastAbsoluteDeviationGrad(param *tensor.Tensor, batchSize int, scaleFactor float64) *tensor.Tensor {
	s := penaltyScale(batchSize, scaleFactor)
	grad := tensor.ZerosLike(param)
	g := grad.Data()
	for i, v := range param.Data() {
		switch {
		case v > 0:
			g[i] = s
		case v < 0:
			g[i] = -s
		}
	}
	return grad
}

// LeastSquares is the L2 penalty scaleFactor * sum a^2 over all tensors,
// divided by batchSize when it is positive.
func LeastSquares(params []*tensor.Tensor, batchSize int, scaleFactor float64) float64 {
	var sum float64
	for _, p := range params {
		sum += floats.Dot(p.Data(), p.Data())
	}
	return sum * penaltyScale(batchSize, scaleFactor)
}

// LeastSquaresGrad returns d LeastSquares / d param for one tensor.
func LeastSquaresGrad(param *tensor.Tensor, batchSize int, scaleFactor float64) *tensor.Tensor {
	grad := param.Clone()
	floats.Scale(2*penaltyScale(batchSize, scaleFactor), grad.Data())
	return grad
}
