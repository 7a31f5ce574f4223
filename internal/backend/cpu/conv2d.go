package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/saenet/internal/parallel"
	"github.com/born-ml/saenet/internal/tensor"
)

// convGeom holds the dimensions of a valid, stride-1 convolution.
type convGeom struct {
	N, C, H, W     int // input
	K, KH, KW      int // kernel
	HOut, WOut     int // feature map
	colRows, colHW int // im2col matrix is (C*KH*KW, HOut*WOut)
}

func newConvGeom(input, kernel tensor.Shape) convGeom {
	if len(input) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %v", input))
	}
	if len(kernel) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [K,C,KH,KW], got %v", kernel))
	}
	if input[1] != kernel[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", input[1], kernel[1]))
	}
	g := convGeom{
		N: input[0], C: input[1], H: input[2], W: input[3],
		K: kernel[0], KH: kernel[2], KW: kernel[3],
	}
	g.HOut = g.H - g.KH + 1
	g.WOut = g.W - g.KW + 1
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("conv2d: kernel %v larger than input %v", kernel, input))
	}
	g.colRows = g.C * g.KH * g.KW
	g.colHW = g.HOut * g.WOut
	return g
}

func (g convGeom) inputSize() int  { return g.C * g.H * g.W }
func (g convGeom) outputSize() int { return g.K * g.colHW }

// Conv2D performs a valid (no padding, stride 1) 2D convolution using im2col.
//
// Input shape: [N, C, H, W]
// Kernel shape: [K, C, KH, KW]
// Output shape: [N, K, H-KH+1, W-KW+1]
//
// For every sample the input patches are unrolled into a
// (C*KH*KW, HOut*WOut) column matrix which is multiplied by the kernel
// viewed as (K, C*KH*KW). Samples are processed in parallel.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.Tensor) *tensor.Tensor {
	g := newConvGeom(input.Shape(), kernel.Shape())
	out := tensor.Zeros(tensor.Shape{g.N, g.K, g.HOut, g.WOut})

	x, w, o := input.Data(), kernel.Data(), out.Data()
	wMat := general(w, g.K, g.colRows)

	parallel.For(g.N, func(n int) {
		col := make([]float64, g.colRows*g.colHW)
		im2col(col, x[n*g.inputSize():(n+1)*g.inputSize()], g)
		blas64.Gemm(blas.NoTrans, blas.NoTrans, 1,
			wMat,
			general(col, g.colRows, g.colHW),
			0,
			general(o[n*g.outputSize():(n+1)*g.outputSize()], g.K, g.colHW))
	}, cpu.par)

	return out
}

// Conv2DInputBackward computes the gradient of a valid convolution with
// respect to its input. It is also the transposed convolution that maps a
// (N, K, HOut, WOut) map back onto a (N, C, H, W) image through a tied kernel.
func (cpu *CPUBackend) Conv2DInputBackward(grad, kernel *tensor.Tensor, inputShape tensor.Shape) *tensor.Tensor {
	g := newConvGeom(inputShape, kernel.Shape())
	gs := grad.Shape()
	if !gs.Equal(tensor.Shape{g.N, g.K, g.HOut, g.WOut}) {
		panic(fmt.Sprintf("conv2d input backward: grad %v does not match %v * %v", gs, inputShape, kernel.Shape()))
	}
	out := tensor.Zeros(inputShape)

	d, w, o := grad.Data(), kernel.Data(), out.Data()
	wMat := general(w, g.K, g.colRows)

	parallel.For(g.N, func(n int) {
		col := make([]float64, g.colRows*g.colHW)
		blas64.Gemm(blas.Trans, blas.NoTrans, 1,
			wMat,
			general(d[n*g.outputSize():(n+1)*g.outputSize()], g.K, g.colHW),
			0,
			general(col, g.colRows, g.colHW))
		col2im(o[n*g.inputSize():(n+1)*g.inputSize()], col, g)
	}, cpu.par)

	return out
}

// Conv2DKernelBackward computes the gradient of a valid convolution with
// respect to its kernel, summed over the batch.
func (cpu *CPUBackend) Conv2DKernelBackward(input, grad *tensor.Tensor, kernelShape tensor.Shape) *tensor.Tensor {
	g := newConvGeom(input.Shape(), kernelShape)
	gs := grad.Shape()
	if !gs.Equal(tensor.Shape{g.N, g.K, g.HOut, g.WOut}) {
		panic(fmt.Sprintf("conv2d kernel backward: grad %v does not match %v * %v", gs, input.Shape(), kernelShape))
	}

	x, d := input.Data(), grad.Data()
	partial := make([][]float64, g.N)

	parallel.For(g.N, func(n int) {
		col := make([]float64, g.colRows*g.colHW)
		im2col(col, x[n*g.inputSize():(n+1)*g.inputSize()], g)
		acc := make([]float64, g.K*g.colRows)
		blas64.Gemm(blas.NoTrans, blas.Trans, 1,
			general(d[n*g.outputSize():(n+1)*g.outputSize()], g.K, g.colHW),
			general(col, g.colRows, g.colHW),
			0,
			general(acc, g.K, g.colRows))
		partial[n] = acc
	}, cpu.par)

	out := tensor.Zeros(kernelShape)
	for _, acc := range partial {
		floats.Add(out.Data(), acc)
	}
	return out
}

// im2col unrolls one sample [C, H, W] into col[(c*KH+p)*KW+q][i*WOut+j] = x[c][i+p][j+q].
func im2col(col, x []float64, g convGeom) {
	for c := 0; c < g.C; c++ {
		for p := 0; p < g.KH; p++ {
			for q := 0; q < g.KW; q++ {
				row := col[((c*g.KH+p)*g.KW+q)*g.colHW:]
				for i := 0; i < g.HOut; i++ {
					src := x[c*g.H*g.W+(i+p)*g.W+q:]
					copy(row[i*g.WOut:(i+1)*g.WOut], src[:g.WOut])
				}
			}
		}
	}
}

// col2im is the adjoint of im2col: it accumulates every column entry back
// onto the input position it was read from.
func col2im(x, col []float64, g convGeom) {
	for c := 0; c < g.C; c++ {
		for p := 0; p < g.KH; p++ {
			for q := 0; q < g.KW; q++ {
				row := col[((c*g.KH+p)*g.KW+q)*g.colHW:]
				for i := 0; i < g.HOut; i++ {
					dst := x[c*g.H*g.W+(i+p)*g.W+q:]
					floats.Add(dst[:g.WOut], row[i*g.WOut:(i+1)*g.WOut])
				}
			}
		}
	}
}
