// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

// Package nn provides the instrumentable model runtime: a tree of named
// modules, the layers that execute inside it, and a Runtime that fires
// registered observers around every module it runs.
//
// The reference architectures (BERT-family and GPT-2 shaped classifiers)
// reduce each backbone to its embedding front end followed by a pooled
// classification head.
package nn

import (
	"github.com/fumi-engineer/saliency/hook"
	"github.com/fumi-engineer/saliency/tensor"
)

// Module is a node in a model's module tree.
type Module interface {
	// Type names the architecture class of the module, e.g. "Embedding" or
	// "BertEmbeddings".
	Type() string
	// Children returns the direct sub-modules in declaration order.
	Children() []Child
}

// Child is a named edge of the module tree.
type Child struct {
	Name   string
	Module Module
}

// Named pairs a module with its dotted path from the root ("" for the root).
type Named struct {
	Path   string
	Module Module
}

// Layer is an executable leaf: forward and backward passes plus the
// parameters it owns.
type Layer interface {
	Module
	Forward(input *tensor.Tensor) *tensor.Tensor
	Backward(gradOutput *tensor.Tensor) *tensor.Tensor
	Parameters() []*tensor.Tensor
}

// Block is an executable container. It runs its children through the
// Runtime so that their observers fire as well.
type Block interface {
	Module
	ForwardWith(rt *Runtime, input *tensor.Tensor) *tensor.Tensor
	BackwardWith(rt *Runtime, gradOutput *tensor.Tensor) *tensor.Tensor
	Parameters() []*tensor.Tensor
}

// Model is the capability the saliency and activation layers need from a
// network: a module tree, observer registration on any of its nodes, one
// forward and one backward pass, gradient reset and a device tag.
type Model interface {
	Root() Module
	RegisterForwardHook(m Module, fn hook.Func) *hook.Handle
	RegisterBackwardHook(m Module, fn hook.Func) *hook.Handle
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Backward(gradOutput *tensor.Tensor) error
	ZeroGrad()
	Device() tensor.Device
}

// Walk visits root and every descendant depth-first, parent before child,
// in declaration order. fn returning false stops the walk.
func Walk(root Module, fn func(path string, m Module) bool) {
	walk("", root, fn)
}

func walk(path string, m Module, fn func(string, Module) bool) bool {
	if !fn(path, m) {
		return false
	}
	for _, c := range m.Children() {
		p := c.Name
		if path != "" {
			p = path + "." + c.Name
		}
		if !walk(p, c.Module, fn) {
			return false
		}
	}
	return true
}

// Modules returns every module of the tree in Walk order.
func Modules(root Module) []Named {
	var out []Named
	Walk(root, func(path string, m Module) bool {
		out = append(out, Named{Path: path, Module: m})
		return true
	})
	return out
}

// Leaves returns the modules that have no children, in Walk order.
func Leaves(root Module) []Named {
	var out []Named
	Walk(root, func(path string, m Module) bool {
		if len(m.Children()) == 0 {
			out = append(out, Named{Path: path, Module: m})
		}
		return true
	})
	return out
}

// Contains reports whether target is root or one of its descendants.
func Contains(root, target Module) bool {
	found := false
	Walk(root, func(_ string, m Module) bool {
		found = m == target
		return !found
	})
	return found
}

// ChildNamed looks up a direct child by name.
func ChildNamed(m Module, name string) (Module, bool) {
	for _, c := range m.Children() {
		if c.Name == name {
			return c.Module, true
		}
	}
	return nil, false
}
