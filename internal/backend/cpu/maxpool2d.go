package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/saenet/internal/parallel"
	"github.com/born-ml/saenet/internal/tensor"
)

// MaxPool2D applies non-overlapping max pooling with window
// (rowFactor, colFactor). Rows and columns that do not fill a whole window
// are ignored.
//
// Input shape: [N, C, H, W]
// Output shape: [N, C, H/rowFactor, W/colFactor]
//
// The second result holds, for every output element, the flat index into
// the input of the element that won the window. MaxPool2DBackward routes
// gradients through those indices.
func (cpu *CPUBackend) MaxPool2D(input *tensor.Tensor, rowFactor, colFactor int) (*tensor.Tensor, []int) {
	s := input.Shape()
	if len(s) != 4 {
		panic(fmt.Sprintf("maxpool2d: input must be 4D [N,C,H,W], got %v", s))
	}
	if rowFactor <= 0 || colFactor <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid factor (%d, %d)", rowFactor, colFactor))
	}
	N, C, H, W := s[0], s[1], s[2], s[3]
	HOut, WOut := H/rowFactor, W/colFactor
	if HOut == 0 || WOut == 0 {
		panic(fmt.Sprintf("maxpool2d: factor (%d, %d) collapses input %v", rowFactor, colFactor, s))
	}

	out := tensor.Zeros(tensor.Shape{N, C, HOut, WOut})
	indices := make([]int, out.Len())
	x, o := input.Data(), out.Data()

	parallel.ForBatch(N, C, func(n, c int) {
		inBase := (n*C + c) * H * W
		outBase := (n*C + c) * HOut * WOut
		for i := 0; i < HOut; i++ {
			for j := 0; j < WOut; j++ {
				best := math.Inf(-1)
				bestIdx := -1
				for p := 0; p < rowFactor; p++ {
					for q := 0; q < colFactor; q++ {
						idx := inBase + (i*rowFactor+p)*W + j*colFactor + q
						if x[idx] > best || bestIdx < 0 {
							best = x[idx]
							bestIdx = idx
						}
					}
				}
				o[outBase+i*WOut+j] = best
				indices[outBase+i*WOut+j] = bestIdx
			}
		}
	}, cpu.par)

	return out, indices
}

// MaxPool2DBackward scatters grad onto the positions recorded by MaxPool2D.
// Every other input position receives zero gradient.
func (cpu *CPUBackend) MaxPool2DBackward(grad *tensor.Tensor, indices []int, inputShape tensor.Shape) *tensor.Tensor {
	if grad.Len() != len(indices) {
		panic(fmt.Sprintf("maxpool2d backward: %d gradients for %d indices", grad.Len(), len(indices)))
	}
	out := tensor.Zeros(inputShape)
	o := out.Data()
	for k, g := range grad.Data() {
		o[indices[k]] += g
	}
	return out
}

// UpsampleNearest expands a pooled map [N, C, h, w] to outShape [N, C, H, W]
// by repeating every element over its (rowFactor, colFactor) window. Border
// rows and columns beyond h*rowFactor, w*colFactor stay zero.
func (cpu *CPUBackend) UpsampleNearest(input *tensor.Tensor, rowFactor, colFactor int, outShape tensor.Shape) *tensor.Tensor {
	s := input.Shape()
	if len(s) != 4 || len(outShape) != 4 || s[0] != outShape[0] || s[1] != outShape[1] ||
		s[2]*rowFactor > outShape[2] || s[3]*colFactor > outShape[3] {
		panic(fmt.Sprintf("upsample: cannot expand %v by (%d, %d) into %v", s, rowFactor, colFactor, outShape))
	}
	N, C, h, w := s[0], s[1], s[2], s[3]
	H, W := outShape[2], outShape[3]

	out := tensor.Zeros(outShape)
	x, o := input.Data(), out.Data()

	parallel.ForBatch(N, C, func(n, c int) {
		inBase := (n*C + c) * h * w
		outBase := (n*C + c) * H * W
		for i := 0; i < h*rowFactor; i++ {
			for j := 0; j < w*colFactor; j++ {
				o[outBase+i*W+j] = x[inBase+(i/rowFactor)*w+j/colFactor]
			}
		}
	}, cpu.par)

	return out
}

// UpsampleNearestBackward sums grad over every (rowFactor, colFactor)
// window, the adjoint of UpsampleNearest.
func (cpu *CPUBackend) UpsampleNearestBackward(grad *tensor.Tensor, rowFactor, colFactor int, pooledShape tensor.Shape) *tensor.Tensor {
	gs := grad.Shape()
	N, C, h, w := pooledShape[0], pooledShape[1], pooledShape[2], pooledShape[3]
	H, W := gs[2], gs[3]

	out := tensor.Zeros(pooledShape)
	d, o := grad.Data(), out.Data()

	parallel.ForBatch(N, C, func(n, c int) {
		inBase := (n*C + c) * H * W
		outBase := (n*C + c) * h * w
		for i := 0; i < h*rowFactor; i++ {
			for j := 0; j < w*colFactor; j++ {
				o[outBase+(i/rowFactor)*w+j/colFactor] += d[inBase+i*W+j]
			}
		}
	}, cpu.par)

	return out
}
