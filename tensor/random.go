// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package tensor

import (
	"golang.org/x/exp/rand"
)

// NewRand returns a deterministic generator for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Randn allocates a tensor of standard normal samples drawn from rng.
// A nil rng uses the package-level generator.
func Randn(shape Shape, rng *rand.Rand) *Tensor {
	return RandnWithStd(shape, rng, 1)
}

// RandnWithStd allocates a tensor of N(0, std^2) samples drawn from rng.
func RandnWithStd(shape Shape, rng *rand.Rand, std float32) *Tensor {
	t := New(shape, F32)
	norm := rand.NormFloat64
	if rng != nil {
		norm = rng.NormFloat64
	}
	for i := range t.data {
		t.data[i] = float32(norm()) * std
	}
	return t
}

// RandnLike samples standard normal values with t's shape and device.
func RandnLike(t *Tensor, rng *rand.Rand) *Tensor {
	r := Randn(t.shape, rng)
	r.dtype, r.device = t.dtype, t.device
	return r
}
