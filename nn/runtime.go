// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import (
	"errors"
	"fmt"

	"github.com/fumi-engineer/saliency/hook"
	"github.com/fumi-engineer/saliency/tensor"
)

var (
	// ErrForward wraps any failure raised while running a forward pass.
	ErrForward = errors.New("forward pass failed")
	// ErrBackward wraps any failure raised while running a backward pass.
	ErrBackward = errors.New("backward pass failed")
)

// Runtime executes modules and fires the observers registered on them.
// It is shared by every module of one model.
type Runtime struct {
	hooks  *hook.Registry
	device tensor.Device
}

// NewRuntime returns a runtime with an empty observer registry.
func NewRuntime(device tensor.Device) *Runtime {
	if device == "" {
		device = tensor.CPU
	}
	return &Runtime{hooks: hook.NewRegistry(), device: device}
}

// RegisterForwardHook attaches fn to m's forward pass.
func (rt *Runtime) RegisterForwardHook(m Module, fn hook.Func) *hook.Handle {
	return rt.hooks.Register(hook.Forward, m, fn)
}

// RegisterBackwardHook attaches fn to m's backward pass.
func (rt *Runtime) RegisterBackwardHook(m Module, fn hook.Func) *hook.Handle {
	return rt.hooks.Register(hook.Backward, m, fn)
}

// Hooks exposes the observer registry, mainly for its counters.
func (rt *Runtime) Hooks() *hook.Registry { return rt.hooks }

// Device returns the device the model computes on.
func (rt *Runtime) Device() tensor.Device { return rt.device }

// Call runs m forward and then fires its forward observers. The value
// returned is the output as left by the observers.
func (rt *Runtime) Call(m Module, input *tensor.Tensor) *tensor.Tensor {
	var out *tensor.Tensor
	switch x := m.(type) {
	case Block:
		out = x.ForwardWith(rt, input)
	case Layer:
		out = x.Forward(input)
	default:
		panic(fmt.Sprintf("module %s is not executable", m.Type()))
	}
	rt.hooks.Fire(hook.Forward, m, []*tensor.Tensor{input}, []*tensor.Tensor{out})
	return out
}

// CallBackward runs m backward and then fires its backward observers with
// (gradInput, gradOutput) in visit order.
func (rt *Runtime) CallBackward(m Module, gradOutput *tensor.Tensor) *tensor.Tensor {
	var gradInput *tensor.Tensor
	switch x := m.(type) {
	case Block:
		gradInput = x.BackwardWith(rt, gradOutput)
	case Layer:
		gradInput = x.Backward(gradOutput)
	default:
		panic(fmt.Sprintf("module %s is not executable", m.Type()))
	}
	rt.hooks.Fire(hook.Backward, m,
		[]*tensor.Tensor{visitOrder(gradInput)},
		[]*tensor.Tensor{visitOrder(gradOutput)})
	return gradInput
}

// visitOrder lays a gradient out the way the backward pass reaches it: the
// position axis (axis 1 of a batched tensor) from last to first. Observers
// get a copy, so flipping it back cannot disturb the pass.
func visitOrder(g *tensor.Tensor) *tensor.Tensor {
	if g.Shape().NDim() < 2 {
		return g.Clone()
	}
	return g.Flip(1)
}

// recoverInto turns a panic raised inside a pass into an error wrapping
// sentinel. Tensor shape and device checks panic, as do layers used out of
// order.
func recoverInto(err *error, sentinel error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		*err = fmt.Errorf("%w: %w", sentinel, e)
		return
	}
	*err = fmt.Errorf("%w: %v", sentinel, r)
}
