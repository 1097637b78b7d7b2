// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package hook

import (
	"testing"

	"github.com/fumi-engineer/saliency/tensor"
)

type site struct{ name string }

func (s *site) Type() string { return s.name }

func scalar(v float32) *tensor.Tensor {
	return tensor.FromSlice([]float32{v}, tensor.NewShape(1))
}

func TestSinkRecordsOutputsByDefault(t *testing.T) {
	s := NewSink()
	a := &site{"a"}
	s.Observe(a, []*tensor.Tensor{scalar(1)}, []*tensor.Tensor{scalar(2)})
	s.Observe(a, []*tensor.Tensor{scalar(3)}, []*tensor.Tensor{scalar(4)})

	vals := s.Values()
	if len(vals) != 2 {
		t.Fatalf("expected 2 captures, got %d", len(vals))
	}
	if vals[0].Tensor(0).At(0) != 2 || vals[1].Tensor(0).At(0) != 4 {
		t.Errorf("sink recorded the wrong side of the call")
	}
	if vals[0].Site != a {
		t.Errorf("capture lost its site")
	}
	if vals[0].Tensor(3) != nil {
		t.Errorf("out-of-range Tensor must be nil")
	}
}

func TestSinkCaptureInputs(t *testing.T) {
	s := NewSink(CaptureInputs())
	s.Observe(&site{"a"}, []*tensor.Tensor{scalar(1)}, []*tensor.Tensor{scalar(2)})
	if got := s.Values()[0].Tensor(0).At(0); got != 1 {
		t.Errorf("expected input 1, got %f", got)
	}
}

func TestSinkClear(t *testing.T) {
	s := NewSink()
	s.Observe(&site{"a"}, nil, []*tensor.Tensor{scalar(1)})
	vals := s.Values()
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("expected empty sink after Clear, got %d", s.Len())
	}
	if len(vals) != 1 {
		t.Errorf("Values must return a copy unaffected by Clear")
	}
}

func TestRegistryFireOrderAndRemove(t *testing.T) {
	r := NewRegistry()
	a, b := &site{"a"}, &site{"b"}

	var calls []string
	h1 := r.Register(Forward, a, func(Site, []*tensor.Tensor, []*tensor.Tensor) { calls = append(calls, "first") })
	r.Register(Forward, a, func(Site, []*tensor.Tensor, []*tensor.Tensor) { calls = append(calls, "second") })
	r.Register(Backward, a, func(Site, []*tensor.Tensor, []*tensor.Tensor) { calls = append(calls, "backward") })
	r.Register(Forward, b, func(Site, []*tensor.Tensor, []*tensor.Tensor) { calls = append(calls, "other") })

	r.Fire(Forward, a, nil, nil)
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("unexpected call order %v", calls)
	}

	h1.Remove()
	h1.Remove()
	calls = nil
	r.Fire(Forward, a, nil, nil)
	if len(calls) != 1 || calls[0] != "second" {
		t.Fatalf("removed observer still fired: %v", calls)
	}
	if r.Attached() != 4 || r.Detached() != 1 || r.Active() != 3 {
		t.Errorf("unexpected counters: attached=%d detached=%d active=%d", r.Attached(), r.Detached(), r.Active())
	}
}

func TestObserverMutatesOutput(t *testing.T) {
	r := NewRegistry()
	a := &site{"a"}
	r.Register(Forward, a, func(_ Site, _, out []*tensor.Tensor) { out[0].ScaleInPlace(3) })

	out := scalar(2)
	r.Fire(Forward, a, nil, []*tensor.Tensor{out})
	if out.At(0) != 6 {
		t.Errorf("expected in-place transform to be visible, got %f", out.At(0))
	}
}

func TestRemoveDuringFire(t *testing.T) {
	r := NewRegistry()
	a := &site{"a"}
	var h *Handle
	n := 0
	h = r.Register(Forward, a, func(Site, []*tensor.Tensor, []*tensor.Tensor) {
		n++
		h.Remove()
	})
	r.Fire(Forward, a, nil, nil)
	r.Fire(Forward, a, nil, nil)
	if n != 1 {
		t.Errorf("expected a single call, got %d", n)
	}
}

func TestScopeClose(t *testing.T) {
	r := NewRegistry()
	a := &site{"a"}

	func() {
		var s Scope
		defer s.Close()
		s.Add(r.Register(Forward, a, func(Site, []*tensor.Tensor, []*tensor.Tensor) {}))
		s.Add(r.Register(Backward, a, func(Site, []*tensor.Tensor, []*tensor.Tensor) {}))
		if s.Len() != 2 || r.Active() != 2 {
			t.Fatalf("expected two active observers")
		}
	}()

	if r.Active() != 0 || r.Attached() != r.Detached() {
		t.Errorf("scope leaked observers: attached=%d detached=%d", r.Attached(), r.Detached())
	}
}

func TestScopeCloseOnPanic(t *testing.T) {
	r := NewRegistry()
	a := &site{"a"}

	func() {
		defer func() { _ = recover() }()
		var s Scope
		defer s.Close()
		s.Add(r.Register(Forward, a, func(Site, []*tensor.Tensor, []*tensor.Tensor) {}))
		panic("boom")
	}()

	if r.Active() != 0 {
		t.Errorf("expected no active observers after panic, got %d", r.Active())
	}
}

func TestHandleIDsAreUnique(t *testing.T) {
	r := NewRegistry()
	a := &site{"a"}
	h1 := r.Register(Forward, a, func(Site, []*tensor.Tensor, []*tensor.Tensor) {})
	h2 := r.Register(Forward, a, func(Site, []*tensor.Tensor, []*tensor.Tensor) {})
	if h1.ID == h2.ID {
		t.Errorf("handles share an id")
	}
	if h1.Kind.String() != "forward" || Backward.String() != "backward" {
		t.Errorf("unexpected kind names")
	}
}
