// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// vec views a flat slice as a unit-stride BLAS vector.
func vec(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Data: data, Inc: 1}
}

// Add returns element-wise t + o.
func (t *Tensor) Add(o *Tensor) *Tensor {
	t.assertCompatible(o)
	r := t.like()
	a, b, dst := t.data, o.data, r.data
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
	return r
}

// Sub returns element-wise t - o.
func (t *Tensor) Sub(o *Tensor) *Tensor {
	t.assertCompatible(o)
	r := t.like()
	a, b, dst := t.data, o.data, r.data
	for i := range dst {
		dst[i] = a[i] - b[i]
	}
	return r
}

// Mul returns element-wise t * o (Hadamard product).
func (t *Tensor) Mul(o *Tensor) *Tensor {
	t.assertCompatible(o)
	r := t.like()
	a, b, dst := t.data, o.data, r.data
	for i := range dst {
		dst[i] = a[i] * b[i]
	}
	return r
}

// Scale returns t * s.
func (t *Tensor) Scale(s float32) *Tensor {
	r := t.Clone()
	r.ScaleInPlace(s)
	return r
}

// Abs returns the element-wise absolute value.
func (t *Tensor) Abs() *Tensor {
	r := t.like()
	for i, v := range t.data {
		if v < 0 {
			v = -v
		}
		r.data[i] = v
	}
	return r
}

// SiLU returns x * sigmoid(x) element-wise.
func (t *Tensor) SiLU() *Tensor {
	r := t.like()
	for i, x := range t.data {
		r.data[i] = x * Sigmoid(x)
	}
	return r
}

// AddInPlace adds other to t element-wise, mutating t.
func (t *Tensor) AddInPlace(other *Tensor) {
	t.AxpyInPlace(1, other)
}

// AxpyInPlace computes t += alpha * x.
func (t *Tensor) AxpyInPlace(alpha float32, x *Tensor) {
	t.assertCompatible(x)
	if len(t.data) == 0 {
		return
	}
	blas32.Axpy(alpha, vec(x.data), vec(t.data))
}

// MulInPlace multiplies t by other element-wise, mutating t.
func (t *Tensor) MulInPlace(other *Tensor) {
	t.assertCompatible(other)
	for i := range t.data {
		t.data[i] *= other.data[i]
	}
}

// ScaleInPlace multiplies every element of t by s.
func (t *Tensor) ScaleInPlace(s float32) {
	if len(t.data) == 0 {
		return
	}
	blas32.Scal(s, vec(t.data))
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float32 {
	sum := float32(0)
	for _, v := range t.data {
		sum += v
	}
	return sum
}

// Mean returns the arithmetic mean of all elements.
func (t *Tensor) Mean() float32 { return t.Sum() / float32(len(t.data)) }

// L1Norm returns sum(|x|) over every element.
func (t *Tensor) L1Norm() float32 {
	if len(t.data) == 0 {
		return 0
	}
	return blas32.Asum(vec(t.data))
}

// Min returns the smallest element. Panics on an empty tensor.
func (t *Tensor) Min() float32 {
	if len(t.data) == 0 {
		panic("min of empty tensor")
	}
	m := t.data[0]
	for _, v := range t.data[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest element. Panics on an empty tensor.
func (t *Tensor) Max() float32 {
	if len(t.data) == 0 {
		panic("max of empty tensor")
	}
	m := t.data[0]
	for _, v := range t.data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// SumAxis reduces along dim by summation, dropping that dimension.
// For a [T, D] tensor, SumAxis(1) yields [T].
func (t *Tensor) SumAxis(dim int) *Tensor {
	outer, size, inner := t.split(dim)
	r := New(t.shape.Without(dim), t.dtype)
	r.device = t.device
	for o := 0; o < outer; o++ {
		for k := 0; k < size; k++ {
			src := t.data[(o*size+k)*inner : (o*size+k+1)*inner]
			dst := r.data[o*inner : (o+1)*inner]
			for i, v := range src {
				dst[i] += v
			}
		}
	}
	return r
}

// Flip reverses the order of elements along dim.
func (t *Tensor) Flip(dim int) *Tensor {
	outer, size, inner := t.split(dim)
	r := t.like()
	for o := 0; o < outer; o++ {
		for k := 0; k < size; k++ {
			src := (o*size + k) * inner
			dst := (o*size + size - 1 - k) * inner
			copy(r.data[dst:dst+inner], t.data[src:src+inner])
		}
	}
	return r
}

// split factors the tensor around dim into (outer, size, inner) extents.
func (t *Tensor) split(dim int) (outer, size, inner int) {
	nd := t.shape.NDim()
	if dim < 0 {
		dim += nd
	}
	if dim < 0 || dim >= nd {
		panic(fmt.Sprintf("dimension %d out of range for shape %v", dim, t.shape))
	}
	dims := t.shape.DimsRef()
	return prod(dims[:dim]), dims[dim], prod(dims[dim+1:])
}

// Matmul computes C = A @ B for 2D [M,K] x [K,N] and batched 3D
// [B,M,K] x [B,K,N] operands.
func Matmul(a, b *Tensor) *Tensor {
	if a.shape.NDim() < 2 || b.shape.NDim() < 2 {
		panic("matmul requires at least 2D tensors")
	}
	aM, aK := a.shape.At(-2), a.shape.At(-1)
	bK, bN := b.shape.At(-2), b.shape.At(-1)
	if aK != bK {
		panic(fmt.Sprintf("matmul dimension mismatch: %d vs %d", aK, bK))
	}

	var batchSize int
	var resultShape Shape
	switch {
	case a.shape.NDim() == 2 && b.shape.NDim() == 2:
		batchSize = 1
		resultShape = NewShape(aM, bN)
	case a.shape.NDim() == 3 && b.shape.NDim() == 3:
		if a.shape.At(0) != b.shape.At(0) {
			panic(fmt.Sprintf("matmul batch mismatch: %d vs %d", a.shape.At(0), b.shape.At(0)))
		}
		batchSize = a.shape.At(0)
		resultShape = NewShape(batchSize, aM, bN)
	default:
		panic("unsupported batch dimensions")
	}

	result := New(resultShape, a.dtype)
	result.device = a.device
	aStride, bStride, cStride := aM*aK, bK*bN, aM*bN
	for batch := 0; batch < batchSize; batch++ {
		aOff, bOff, cOff := batch*aStride, batch*bStride, batch*cStride
		gemm(blas.NoTrans, blas.NoTrans, aM, bN, aK,
			a.data[aOff:aOff+aStride], aK,
			b.data[bOff:bOff+bStride], bN,
			result.data[cOff:cOff+cStride], 0)
	}
	return result
}

// MatmulTransposedB computes C = A @ B^T without materializing the
// transpose. A: [M, K], B: [N, K] -> C: [M, N].
func MatmulTransposedB(a, b *Tensor) *Tensor {
	if a.shape.NDim() != 2 || b.shape.NDim() != 2 {
		panic("MatmulTransposedB requires 2D tensors")
	}
	aM, aK := a.shape.At(0), a.shape.At(1)
	bN, bK := b.shape.At(0), b.shape.At(1)
	if aK != bK {
		panic(fmt.Sprintf("matmulT dimension mismatch: %d vs %d", aK, bK))
	}
	result := New(NewShape(aM, bN), a.dtype)
	result.device = a.device
	gemm(blas.NoTrans, blas.Trans, aM, bN, aK, a.data, aK, b.data, bK, result.data, 0)
	return result
}

// MatmulTransposedA accumulates C += A^T @ B into c, where A: [K, M] and
// B: [K, N] are row-major and c holds [M, N]. Used for weight gradients.
func MatmulTransposedA(m, n, k int, a, b, c []float32) {
	gemm(blas.Trans, blas.NoTrans, m, n, k, a, m, b, n, c, 1)
}

// gemm wraps blas32.Gemm for row-major operands. lda/ldb are the row strides
// of A and B as stored (before any transpose is applied).
func gemm(tA, tB blas.Transpose, m, n, k int, a []float32, lda int, b []float32, ldb int, c []float32, beta float32) {
	if m == 0 || n == 0 || k == 0 {
		return
	}
	aRows, aCols := m, k
	if tA == blas.Trans {
		aRows, aCols = k, m
	}
	bRows, bCols := k, n
	if tB == blas.Trans {
		bRows, bCols = n, k
	}
	blas32.Gemm(tA, tB, 1,
		blas32.General{Rows: aRows, Cols: aCols, Data: a, Stride: lda},
		blas32.General{Rows: bRows, Cols: bCols, Data: b, Stride: ldb},
		beta,
		blas32.General{Rows: m, Cols: n, Data: c, Stride: n})
}

// Sigmoid computes 1 / (1 + exp(-x)) in float32.
func Sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(float64(-x))))
}
