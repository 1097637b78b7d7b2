// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package saliency

import (
	"errors"
	"fmt"
)

var (
	// ErrEmbeddingNotFound means no embedding layer was given and none of
	// the known architecture shapes occurs in the model tree.
	ErrEmbeddingNotFound = errors.New("saliency: no embedding layer found")
	// ErrInvalidEmbeddingLayer means the given layer is not part of the model.
	ErrInvalidEmbeddingLayer = errors.New("saliency: embedding layer is not a sub-module of the model")
	// ErrInvalidConfig reports an unusable engine option.
	ErrInvalidConfig = errors.New("saliency: invalid configuration")

	errNoCapture = errors.New("embedding layer was not executed")
)

// ComputationError reports a failed forward pass, loss evaluation or
// backward pass. Observers attached for the failing step are already
// detached when it is returned.
type ComputationError struct {
	Algorithm Algorithm
	Step      int    // zero-based iteration
	Op        string // "forward", "loss", "backward" or "capture"
	Err       error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("saliency: %s step %d: %s: %v", e.Algorithm, e.Step, e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }
