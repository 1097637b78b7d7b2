// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package tensor

import (
	"strconv"
	"strings"
)

// Shape holds the dimensions of a tensor. The slice is private so that a
// Shape handed out by a tensor cannot be used to corrupt it.
type Shape struct{ dims []int }

// NewShape creates a Shape from variadic dimension sizes.
func NewShape(dims ...int) Shape {
	return Shape{dims: cloneInts(dims)}
}

// Dims returns a copy of the dimension sizes.
func (s Shape) Dims() []int { return cloneInts(s.dims) }

// DimsRef returns the internal dimension slice. Callers must not mutate it.
func (s Shape) DimsRef() []int { return s.dims }

// NDim returns the number of dimensions.
func (s Shape) NDim() int { return len(s.dims) }

// Numel returns the number of elements. A rank-0 shape holds nothing.
func (s Shape) Numel() int {
	if len(s.dims) == 0 {
		return 0
	}
	return prod(s.dims)
}

// At returns the size of dimension dim. Negative indices count from the end.
// Out-of-range dimensions report 0.
func (s Shape) At(dim int) int {
	if dim < 0 {
		dim += len(s.dims)
	}
	if dim < 0 || dim >= len(s.dims) {
		return 0
	}
	return s.dims[dim]
}

// Strides returns row-major strides. For [2, 3, 4] that is [12, 4, 1].
func (s Shape) Strides() []int {
	if len(s.dims) == 0 {
		return nil
	}
	strides := make([]int, len(s.dims))
	strides[len(s.dims)-1] = 1
	for i := len(s.dims) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s.dims[i+1]
	}
	return strides
}

// Equal reports whether both shapes have identical dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s.dims) != len(other.dims) {
		return false
	}
	for i := range s.dims {
		if s.dims[i] != other.dims[i] {
			return false
		}
	}
	return true
}

// Without returns the shape with dimension dim removed.
func (s Shape) Without(dim int) Shape {
	if dim < 0 {
		dim += len(s.dims)
	}
	out := make([]int, 0, len(s.dims))
	for i, d := range s.dims {
		if i != dim {
			out = append(out, d)
		}
	}
	return Shape{dims: out}
}

// String formats the shape as "[d0, d1, ...]".
func (s Shape) String() string {
	parts := make([]string, len(s.dims))
	for i, d := range s.dims {
		parts[i] = strconv.Itoa(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func prod(xs []int) int {
	n := 1
	for _, x := range xs {
		n *= x
	}
	return n
}

func cloneInts(src []int) []int {
	dst := make([]int, len(src))
	copy(dst, src)
	return dst
}
