// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package saliency

import (
	"testing"

	"github.com/fumi-engineer/saliency/internal/logging"
	"github.com/fumi-engineer/saliency/nn"
	"github.com/fumi-engineer/saliency/tensor"
)

func benchAlgorithm(b *testing.B, algo Algorithm) {
	cfg := nn.Tiny()
	cfg.HiddenDim = 64
	m := nn.NewBertClassifier(cfg)
	e, err := New(m, WithAlgorithm(algo), WithLogger(logging.Discard()))
	if err != nil {
		b.Fatal(err)
	}
	ids := make([]int, 32)
	for i := range ids {
		ids[i] = (i * 7) % cfg.VocabSize
	}
	input := tensor.FromInts(ids, tensor.NewShape(1, len(ids)))
	label := tensor.FromInts([]int{1}, tensor.NewShape(1))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Saliency(input, label, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSimpleGradient(b *testing.B)     { benchAlgorithm(b, Simple) }
func BenchmarkIntegratedGradient(b *testing.B) { benchAlgorithm(b, Integrated) }
func BenchmarkSmoothGradient(b *testing.B)     { benchAlgorithm(b, Smooth) }
