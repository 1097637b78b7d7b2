// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

// Package tensor provides the dense float32 tensors that the instrumented
// runtime and the attribution algorithms operate on.
//
// Storage is a flat []float32 in row-major order. BLAS-shaped work (matrix
// products, norms, scaled accumulation) is delegated to gonum's pure-Go
// blas32. All operations allocate new tensors unless suffixed with
// "InPlace".
package tensor

import (
	"fmt"
)

// DType enumerates element types. Only F32 is used at runtime.
type DType uint8

const (
	F32 DType = iota
	F16
	BF16
	I32
	I64
)

// Size returns the byte width of the data type.
func (d DType) Size() int {
	switch d {
	case F16, BF16:
		return 2
	case I64:
		return 8
	default:
		return 4
	}
}

// String returns a human-readable name for the data type.
func (d DType) String() string {
	names := [...]string{"f32", "f16", "bf16", "i32", "i64"}
	if int(d) < len(names) {
		return names[d]
	}
	return "unknown"
}

// Device identifies where a tensor lives. Storage is always host memory;
// the tag only lets callers keep values and models on the same device, the
// way a label is moved next to the model before computing a loss.
type Device string

// CPU is the default device.
const CPU Device = "cpu"

// Tensor stores multi-dimensional float32 data in a contiguous flat slice.
type Tensor struct {
	data   []float32
	shape  Shape
	dtype  DType
	device Device
	Grad   []float32 // per-element gradient, nil until allocated
}

// New allocates a zero-filled tensor of the given shape and dtype.
func New(shape Shape, dtype DType) *Tensor {
	return &Tensor{data: make([]float32, shape.Numel()), shape: shape, dtype: dtype, device: CPU}
}

// Zeros is an alias for New.
func Zeros(shape Shape, dtype DType) *Tensor { return New(shape, dtype) }

// ZerosLike allocates a zero tensor with t's shape, dtype and device.
func ZerosLike(t *Tensor) *Tensor {
	z := New(t.shape, t.dtype)
	z.device = t.device
	return z
}

// Ones allocates a tensor filled with 1.0.
func Ones(shape Shape, dtype DType) *Tensor {
	t := New(shape, dtype)
	for i := range t.data {
		t.data[i] = 1
	}
	return t
}

// FromSlice creates a tensor by copying data.
// Panics if len(data) != shape.Numel().
func FromSlice(data []float32, shape Shape) *Tensor {
	if len(data) != shape.Numel() {
		panic(fmt.Sprintf("data length %d != shape numel %d", len(data), shape.Numel()))
	}
	d := make([]float32, len(data))
	copy(d, data)
	return &Tensor{data: d, shape: shape, dtype: F32, device: CPU}
}

// FromInts encodes integer ids (token ids, class labels) as a float32 tensor.
func FromInts(ids []int, shape Shape) *Tensor {
	d := make([]float32, len(ids))
	for i, id := range ids {
		d[i] = float32(id)
	}
	return FromSlice(d, shape)
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape { return t.shape }

// DType returns the tensor's data type tag.
func (t *Tensor) DType() DType { return t.dtype }

// Device returns the device the tensor is tagged with.
func (t *Tensor) Device() Device { return t.device }

// To returns t if it already lives on dev, otherwise a copy tagged with dev.
func (t *Tensor) To(dev Device) *Tensor {
	if t.device == dev {
		return t
	}
	c := t.Clone()
	c.device = dev
	return c
}

// DataPtr returns the underlying storage slice directly (no copy).
// Callers may mutate elements in place; use Data for a safe copy.
func (t *Tensor) DataPtr() []float32 { return t.data }

// Data returns a copy of the underlying storage.
func (t *Tensor) Data() []float32 {
	d := make([]float32, len(t.data))
	copy(d, t.data)
	return d
}

// Ints decodes the tensor as integer ids.
func (t *Tensor) Ints() []int {
	out := make([]int, len(t.data))
	for i, v := range t.data {
		out[i] = int(v)
	}
	return out
}

func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != t.shape.NDim() {
		panic(fmt.Sprintf("expected %d indices, got %d", t.shape.NDim(), len(indices)))
	}
	idx := 0
	strides := t.shape.Strides()
	for i, index := range indices {
		if index < 0 || index >= t.shape.At(i) {
			panic(fmt.Sprintf("index %d out of bounds for dim %d with size %d", index, i, t.shape.At(i)))
		}
		idx += index * strides[i]
	}
	return idx
}

// At reads a single element by multi-dimensional index.
func (t *Tensor) At(indices ...int) float32 { return t.data[t.flatIndex(indices)] }

// Set writes a single element by multi-dimensional index.
func (t *Tensor) Set(value float32, indices ...int) { t.data[t.flatIndex(indices)] = value }

// Clone returns a deep copy of the tensor, gradient excluded.
func (t *Tensor) Clone() *Tensor {
	c := FromSlice(t.data, t.shape)
	c.dtype, c.device = t.dtype, t.device
	return c
}

// Reshape returns a tensor sharing t's storage with a different shape.
// Mutations through one are visible through the other.
func (t *Tensor) Reshape(s Shape) *Tensor {
	if t.shape.Numel() != s.Numel() {
		panic(fmt.Sprintf("cannot reshape %v to %v: different numel", t.shape, s))
	}
	return &Tensor{data: t.data, shape: s, dtype: t.dtype, device: t.device}
}

// Index selects element i along dimension 0 and returns it as a copy with
// that dimension dropped: a [B, T, D] tensor yields a [T, D] tensor.
func (t *Tensor) Index(i int) *Tensor {
	n := t.shape.At(0)
	if t.shape.NDim() < 2 || i < 0 || i >= n {
		panic(fmt.Sprintf("index %d out of range for shape %v", i, t.shape))
	}
	stride := len(t.data) / n
	r := FromSlice(t.data[i*stride:(i+1)*stride], t.shape.Without(0))
	r.dtype, r.device = t.dtype, t.device
	return r
}

// ZeroGrad resets the gradient. A correctly sized buffer is zeroed in place;
// anything else is dropped so that only tensors that receive gradients during
// the next backward pass carry one.
func (t *Tensor) ZeroGrad() {
	if t.Grad != nil && len(t.Grad) == len(t.data) {
		for i := range t.Grad {
			t.Grad[i] = 0
		}
		return
	}
	t.Grad = nil
}

// AccumulateGrad adds grad element-wise into t.Grad, allocating if nil.
func (t *Tensor) AccumulateGrad(grad []float32) {
	if t.Grad == nil {
		t.Grad = make([]float32, len(t.data))
	}
	for i, g := range grad {
		t.Grad[i] += g
	}
}

func (t *Tensor) assertCompatible(other *Tensor) {
	if !t.shape.Equal(other.shape) {
		panic(fmt.Sprintf("shape mismatch: %v vs %v", t.shape, other.shape))
	}
	if t.device != other.device {
		panic(fmt.Sprintf("device mismatch: %s vs %s", t.device, other.device))
	}
}

func (t *Tensor) like() *Tensor {
	r := New(t.shape, t.dtype)
	r.device = t.device
	return r
}
