// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

// Package activation records the output of every leaf module of a model
// during one forward pass.
package activation

import (
	"fmt"
	"log/slog"

	"github.com/fumi-engineer/saliency/hook"
	"github.com/fumi-engineer/saliency/nn"
	"github.com/fumi-engineer/saliency/tensor"
)

// Collector dumps leaf activations of a model.
type Collector struct {
	model  nn.Model
	leaves []nn.Named
	sink   *hook.Sink
	log    *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger used for debug records.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.log = l
		}
	}
}

// New enumerates the leaves of model once; the tree is assumed static.
func New(model nn.Model, opts ...Option) *Collector {
	c := &Collector{
		model:  model,
		leaves: nn.Leaves(model.Root()),
		sink:   hook.NewSink(),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Leaves returns the leaf modules in depth-first order with their paths.
func (c *Collector) Leaves() []nn.Named {
	out := make([]nn.Named, len(c.leaves))
	copy(out, c.leaves)
	return out
}

// Activation runs one forward pass on input and returns one capture per leaf
// execution, in execution order. A leaf run twice appears twice; a leaf not
// run does not appear.
//
// Every observer attached here is detached and the buffer cleared before
// Activation returns, whether or not the pass succeeds.
func (c *Collector) Activation(input *tensor.Tensor) ([]hook.Capture, error) {
	var scope hook.Scope
	defer func() {
		scope.Close()
		c.sink.Clear()
		c.log.Debug("activation hooks released", "leaves", len(c.leaves))
	}()

	for _, leaf := range c.leaves {
		scope.Add(c.model.RegisterForwardHook(leaf.Module, c.sink.Observe))
	}
	c.log.Debug("activation hooks attached", "leaves", scope.Len())

	if _, err := c.model.Forward(input); err != nil {
		return nil, fmt.Errorf("activation: %w", err)
	}
	return c.sink.Values(), nil
}
