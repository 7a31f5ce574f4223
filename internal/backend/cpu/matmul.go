package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/saenet/internal/tensor"
)

// MatMul computes a·b for a (m, k) and b (k, n).
func (cpu *CPUBackend) MatMul(a, b *tensor.Tensor) *tensor.Tensor {
	return gemm(a, b, blas.NoTrans, blas.NoTrans)
}

// MatMulTransA computes aᵀ·b for a (k, m) and b (k, n).
func (cpu *CPUBackend) MatMulTransA(a, b *tensor.Tensor) *tensor.Tensor {
	return gemm(a, b, blas.Trans, blas.NoTrans)
}

// MatMulTransB computes a·bᵀ for a (m, k) and b (n, k).
func (cpu *CPUBackend) MatMulTransB(a, b *tensor.Tensor) *tensor.Tensor {
	return gemm(a, b, blas.NoTrans, blas.Trans)
}

func gemm(a, b *tensor.Tensor, ta, tb blas.Transpose) *tensor.Tensor {
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 {
		panic(fmt.Sprintf("matmul: need 2D tensors, got %v and %v", as, bs))
	}

	m, k := as[0], as[1]
	if ta == blas.Trans {
		m, k = k, m
	}
	kb, n := bs[0], bs[1]
	if tb == blas.Trans {
		kb, n = n, kb
	}
	if k != kb {
		panic(fmt.Sprintf("matmul: inner dimensions differ: %v and %v", as, bs))
	}

	out := tensor.Zeros(tensor.Shape{m, n})
	blas64.Gemm(ta, tb, 1,
		general(a.Data(), as[0], as[1]),
		general(b.Data(), bs[0], bs[1]),
		0,
		general(out.Data(), m, n))
	return out
}

func general(data []float64, rows, cols int) blas64.General {
	return blas64.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

// AddRowVector adds v (n) to every row of x (m, n) in place.
func (cpu *CPUBackend) AddRowVector(x, v *tensor.Tensor) {
	xs := x.Shape()
	if len(xs) != 2 || v.Len() != xs[1] {
		panic(fmt.Sprintf("add row vector: %v vs %v", xs, v.Shape()))
	}
	xd, vd := x.Data(), v.Data()
	n := xs[1]
	for r := 0; r < xs[0]; r++ {
		row := xd[r*n : (r+1)*n]
		for j := range row {
			row[j] += vd[j]
		}
	}
}

// SumRows returns the column sums of x (m, n) as a tensor of shape (n).
func (cpu *CPUBackend) SumRows(x *tensor.Tensor) *tensor.Tensor {
	xs := x.Shape()
	if len(xs) != 2 {
		panic(fmt.Sprintf("sum rows: need 2D tensor, got %v", xs))
	}
	out := tensor.Zeros(tensor.Shape{xs[1]})
	od, xd := out.Data(), x.Data()
	n := xs[1]
	for r := 0; r < xs[0]; r++ {
		for j, v := range xd[r*n : (r+1)*n] {
			od[j] += v
		}
	}
	return out
}
