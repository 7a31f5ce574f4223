package cost

import (
	"fmt"

	"github.com/born-ml/saenet/internal/tensor"
)

// Jacobian returns the first-order partials of a sigmoid hidden layer's
// output with respect to its input:
//
//	J[b, i, k] = a[b, k] * (1 - a[b, k]) * W[i, k]
//
// a is the hidden activation (batch, numNeurons) and w the weight matrix
// (inputSize, numNeurons). The result has shape (batch, inputSize, numNeurons).
func Jacobian(a, w *tensor.Tensor) *tensor.Tensor {
	deriv := a.Clone()
	d := deriv.Data()
	for i, v := range d {
		d[i] = v * (1 - v)
	}
	return JacobianFromDerivative(deriv, w)
}

// JacobianFromDerivative builds J[b, i, k] = deriv[b, k] * W[i, k] from any
// elementwise activation derivative already evaluated at the hidden units.
func JacobianFromDerivative(deriv, w *tensor.Tensor) *tensor.Tensor {
	batch, neurons, inputs := checkJacobian(deriv, w)
	out := tensor.Zeros(tensor.Shape{batch, inputs, neurons})
	d, wd, o := deriv.Data(), w.Data(), out.Data()
	for b := 0; b < batch; b++ {
		row := d[b*neurons : (b+1)*neurons]
		for i := 0; i < inputs; i++ {
			dst := o[(b*inputs+i)*neurons:]
			src := wd[i*neurons:]
			for k, dk := range row {
				dst[k] = dk * src[k]
			}
		}
	}
	return out
}

func checkJacobian(deriv, w *tensor.Tensor) (batch, neurons, inputs int) {
	ds, ws := deriv.Shape(), w.Shape()
	if len(ds) != 2 || len(ws) != 2 || ds[1] != ws[1] {
		panic(fmt.Sprintf("cost: jacobian needs (batch, N) and (inputs, N), got %v and %v", ds, ws))
	}
	return ds[0], ds[1], ws[0]
}

// Contraction is the contractive penalty rate * sum(J^2) / batch, where
// J is JacobianFromDerivative(deriv, w).
//
// It is evaluated without materialising J through
// sum_{b,i,k} d[b,k]^2 W[i,k]^2 = sum_k (sum_b d[b,k]^2) (sum_i W[i,k]^2).
// The returned gradients are with respect to deriv and w.
func Contraction(deriv, w *tensor.Tensor, rate float64) (float64, *tensor.Tensor, *tensor.Tensor) {
	batch, neurons, inputs := checkJacobian(deriv, w)
	d, wd := deriv.Data(), w.Data()

	dSq := make([]float64, neurons) // sum_b d[b,k]^2
	for b := 0; b < batch; b++ {
		for k, v := range d[b*neurons : (b+1)*neurons] {
			dSq[k] += v * v
		}
	}
	wSq := make([]float64, neurons) // sum_i W[i,k]^2
	for i := 0; i < inputs; i++ {
		for k, v := range wd[i*neurons : (i+1)*neurons] {
			wSq[k] += v * v
		}
	}

	scale := rate / float64(batch)
	var sum float64
	for k := range dSq {
		sum += dSq[k] * wSq[k]
	}

	gradDeriv := tensor.ZerosLike(deriv)
	gd := gradDeriv.Data()
	for b := 0; b < batch; b++ {
		for k := 0; k < neurons; k++ {
			gd[b*neurons+k] = 2 * scale * d[b*neurons+k] * wSq[k]
		}
	}
	gradW := tensor.ZerosLike(w)
	gw := gradW.Data()
	for i := 0; i < inputs; i++ {
		for k := 0; k < neurons; k++ {
			gw[i*neurons+k] = 2 * scale * wd[i*neurons+k] * dSq[k]
		}
	}

	return scale * sum, gradDeriv, gradW
}
