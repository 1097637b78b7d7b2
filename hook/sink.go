// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package hook

import "github.com/fumi-engineer/saliency/tensor"

// Capture is one recorded observer invocation.
type Capture struct {
	Site    Site
	Tensors []*tensor.Tensor
}

// Tensor returns the i-th captured tensor, or nil if there is none.
func (c Capture) Tensor(i int) *tensor.Tensor {
	if i < 0 || i >= len(c.Tensors) {
		return nil
	}
	return c.Tensors[i]
}

// Sink appends every value it observes to an ordered buffer. Its Observe
// method is a Func, so one sink can be attached to any number of sites.
type Sink struct {
	inputs bool
	values []Capture
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// CaptureInputs records module inputs instead of outputs.
func CaptureInputs() SinkOption {
	return func(s *Sink) { s.inputs = true }
}

// NewSink returns an empty sink recording module outputs unless configured
// otherwise.
func NewSink(opts ...SinkOption) *Sink {
	s := &Sink{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe records out (or in, for an input sink).
func (s *Sink) Observe(site Site, in, out []*tensor.Tensor) {
	v := out
	if s.inputs {
		v = in
	}
	s.values = append(s.values, Capture{Site: site, Tensors: append([]*tensor.Tensor(nil), v...)})
}

// Values returns the recorded captures in observation order. The returned
// slice is a copy; the tensors are shared.
func (s *Sink) Values() []Capture {
	out := make([]Capture, len(s.values))
	copy(out, s.values)
	return out
}

// Len returns the number of recorded captures.
func (s *Sink) Len() int { return len(s.values) }

// Clear empties the buffer. Attached handles are not affected.
func (s *Sink) Clear() { s.values = nil }
