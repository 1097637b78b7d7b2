// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package tensor

import (
	"math"
	"strings"
	"testing"
)

func TestShape(t *testing.T) {
	s := NewShape(2, 3, 4)
	if s.NDim() != 3 {
		t.Errorf("expected 3 dims, got %d", s.NDim())
	}
	if s.Numel() != 24 {
		t.Errorf("expected 24 elements, got %d", s.Numel())
	}
	if s.At(0) != 2 || s.At(-1) != 4 || s.At(5) != 0 {
		t.Errorf("unexpected dims: %v", s.Dims())
	}
	if got := s.Without(1); !got.Equal(NewShape(2, 4)) {
		t.Errorf("Without(1): expected [2, 4], got %v", got)
	}
	if s.String() != "[2, 3, 4]" {
		t.Errorf("unexpected string %q", s.String())
	}
}

func TestShapeStrides(t *testing.T) {
	strides := NewShape(2, 3, 4).Strides()
	if len(strides) != 3 || strides[0] != 12 || strides[1] != 4 || strides[2] != 1 {
		t.Errorf("unexpected strides: %v", strides)
	}
}

func TestDType(t *testing.T) {
	if F32.Size() != 4 || F16.Size() != 2 || I64.Size() != 8 {
		t.Errorf("unexpected dtype sizes")
	}
	if F32.String() != "f32" {
		t.Errorf("expected 'f32', got '%s'", F32.String())
	}
}

func TestTensorFromSlice(t *testing.T) {
	tensor := FromSlice([]float32{1, 2, 3, 4, 5, 6}, NewShape(2, 3))
	if tensor.At(0, 0) != 1 || tensor.At(1, 2) != 6 {
		t.Errorf("unexpected values")
	}
	if tensor.Device() != CPU {
		t.Errorf("expected cpu device, got %s", tensor.Device())
	}
}

func TestTensorArithmetic(t *testing.T) {
	a := FromSlice([]float32{1, 2, 3}, NewShape(3))
	b := FromSlice([]float32{4, 5, 6}, NewShape(3))

	cases := []struct {
		name string
		got  *Tensor
		want []float32
	}{
		{"add", a.Add(b), []float32{5, 7, 9}},
		{"sub", b.Sub(a), []float32{3, 3, 3}},
		{"mul", a.Mul(b), []float32{4, 10, 18}},
		{"scale", a.Scale(2), []float32{2, 4, 6}},
		{"abs", a.Scale(-1).Abs(), []float32{1, 2, 3}},
	}
	for _, tc := range cases {
		got := tc.got.Data()
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("%s: index %d expected %f, got %f", tc.name, i, tc.want[i], got[i])
			}
		}
	}
}

func TestTensorInPlace(t *testing.T) {
	a := FromSlice([]float32{1, 2, 3}, NewShape(3))
	b := FromSlice([]float32{1, 1, 1}, NewShape(3))

	a.AxpyInPlace(2, b)
	a.ScaleInPlace(0.5)
	a.MulInPlace(FromSlice([]float32{2, 2, 2}, NewShape(3)))
	a.AddInPlace(b)

	// ((x + 2) / 2) * 2 + 1 = x + 3
	want := []float32{4, 5, 6}
	for i, v := range a.DataPtr() {
		if v != want[i] {
			t.Errorf("index %d: expected %f, got %f", i, want[i], v)
		}
	}
}

func TestTensorSiLU(t *testing.T) {
	data := FromSlice([]float32{0, 1, -1}, NewShape(3)).SiLU().Data()
	if math.Abs(float64(data[0])) > 0.001 {
		t.Errorf("expected ~0, got %f", data[0])
	}
	if math.Abs(float64(data[1])-0.731) > 0.01 {
		t.Errorf("expected ~0.731, got %f", data[1])
	}
	if math.Abs(float64(data[2])+0.269) > 0.01 {
		t.Errorf("expected ~-0.269, got %f", data[2])
	}
}

func TestReductions(t *testing.T) {
	a := FromSlice([]float32{1, -2, 3, -4, 5, -6}, NewShape(2, 3))
	if got := a.L1Norm(); got != 21 {
		t.Errorf("L1Norm: expected 21, got %f", got)
	}
	if a.Min() != -6 || a.Max() != 5 {
		t.Errorf("unexpected min/max: %f %f", a.Min(), a.Max())
	}
	if a.Sum() != -3 {
		t.Errorf("Sum: expected -3, got %f", a.Sum())
	}

	rows := a.SumAxis(1)
	if !rows.Shape().Equal(NewShape(2)) || rows.At(0) != 2 || rows.At(1) != -5 {
		t.Errorf("SumAxis(1): unexpected %v %v", rows.Shape(), rows.Data())
	}
	cols := a.SumAxis(0)
	if !cols.Shape().Equal(NewShape(3)) || cols.At(0) != -3 || cols.At(1) != 3 || cols.At(2) != -3 {
		t.Errorf("SumAxis(0): unexpected %v %v", cols.Shape(), cols.Data())
	}
	if got := Zeros(NewShape(0), F32).L1Norm(); got != 0 {
		t.Errorf("empty L1Norm: expected 0, got %f", got)
	}
}

func TestFlip(t *testing.T) {
	a := FromSlice([]float32{1, 2, 3, 4, 5, 6}, NewShape(3, 2))
	rows := a.Flip(0).Data()
	want := []float32{5, 6, 3, 4, 1, 2}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("Flip(0) index %d: expected %f, got %f", i, want[i], rows[i])
		}
	}
	cols := a.Flip(1).Data()
	want = []float32{2, 1, 4, 3, 6, 5}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("Flip(1) index %d: expected %f, got %f", i, want[i], cols[i])
		}
	}
	back := a.Flip(0).Flip(0).Data()
	for i, v := range a.DataPtr() {
		if back[i] != v {
			t.Fatalf("double flip changed index %d", i)
		}
	}
}

func TestIndex(t *testing.T) {
	a := FromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8}, NewShape(2, 2, 2))
	b := a.Index(1)
	if !b.Shape().Equal(NewShape(2, 2)) {
		t.Fatalf("unexpected shape %v", b.Shape())
	}
	if b.At(0, 0) != 5 || b.At(1, 1) != 8 {
		t.Errorf("unexpected values %v", b.Data())
	}
	b.Set(0, 0, 0)
	if a.At(1, 0, 0) != 5 {
		t.Errorf("Index must return a copy")
	}
}

func TestDeviceMove(t *testing.T) {
	a := FromSlice([]float32{1, 2}, NewShape(2))
	if a.To(CPU) != a {
		t.Errorf("To on the same device must return the receiver")
	}
	g := a.To(Device("gpu:0"))
	if g.Device() != "gpu:0" || g == a {
		t.Fatalf("expected a copy on gpu:0")
	}

	defer func() {
		r := recover()
		if r == nil || !strings.Contains(r.(string), "device mismatch") {
			t.Errorf("expected device mismatch panic, got %v", r)
		}
	}()
	a.Add(g)
}

func TestMatmul(t *testing.T) {
	// [2, 3] x [3, 4] -> [2, 4]
	a := FromSlice([]float32{1, 2, 3, 4, 5, 6}, NewShape(2, 3))
	b := FromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, NewShape(3, 4))
	c := Matmul(a, b)
	if !c.Shape().Equal(NewShape(2, 4)) {
		t.Fatalf("unexpected shape: %v", c.Shape())
	}
	// c[0,0] = 1*1 + 2*5 + 3*9 = 38, c[1,3] = 4*4 + 5*8 + 6*12 = 128
	if c.At(0, 0) != 38 || c.At(1, 3) != 128 {
		t.Errorf("unexpected values %v", c.Data())
	}
}

func TestMatmulTransposed(t *testing.T) {
	a := FromSlice([]float32{1, 2, 3, 4}, NewShape(2, 2))
	w := FromSlice([]float32{1, 0, 0, 1, 1, 1}, NewShape(3, 2))
	y := MatmulTransposedB(a, w)
	want := []float32{1, 2, 3, 3, 4, 7}
	for i, v := range y.Data() {
		if v != want[i] {
			t.Fatalf("MatmulTransposedB index %d: expected %f, got %f", i, want[i], v)
		}
	}

	// dW = g^T @ x with g [2, 3], x [2, 2] -> [3, 2]
	g := []float32{1, 0, 1, 0, 1, 1}
	dW := make([]float32, 6)
	MatmulTransposedA(3, 2, 2, g, a.DataPtr(), dW)
	wantDW := []float32{1, 2, 3, 4, 4, 6}
	for i, v := range dW {
		if v != wantDW[i] {
			t.Fatalf("MatmulTransposedA index %d: expected %f, got %f", i, wantDW[i], v)
		}
	}
}

func TestRandnSeeded(t *testing.T) {
	a := Randn(NewShape(4, 4), NewRand(7)).Data()
	b := Randn(NewShape(4, 4), NewRand(7)).Data()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different samples at %d", i)
		}
	}
	z := RandnWithStd(NewShape(8), NewRand(7), 0)
	if z.L1Norm() != 0 {
		t.Errorf("zero std must produce zeros")
	}
}

func TestGradAccumulation(t *testing.T) {
	p := Zeros(NewShape(3), F32)
	p.AccumulateGrad([]float32{1, 2, 3})
	p.AccumulateGrad([]float32{1, 1, 1})
	if p.Grad[2] != 4 {
		t.Errorf("expected 4, got %f", p.Grad[2])
	}
	p.ZeroGrad()
	for _, g := range p.Grad {
		if g != 0 {
			t.Fatalf("ZeroGrad left %f", g)
		}
	}
}
