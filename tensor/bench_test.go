// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package tensor

import "testing"

func benchMatmul(b *testing.B, n int) {
	rng := NewRand(42)
	x := Randn(NewShape(n, n), rng)
	y := Randn(NewShape(n, n), rng)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Matmul(x, y)
	}
}

func BenchmarkMatmul64(b *testing.B)  { benchMatmul(b, 64) }
func BenchmarkMatmul128(b *testing.B) { benchMatmul(b, 128) }
func BenchmarkMatmul256(b *testing.B) { benchMatmul(b, 256) }

// [seq_len, hidden] shapes seen by the saliency reductions
func BenchmarkFlipSeq512x768(b *testing.B) {
	x := Randn(NewShape(512, 768), NewRand(42))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = x.Flip(0)
	}
}

func BenchmarkL1Norm512x768(b *testing.B) {
	x := Randn(NewShape(512, 768), NewRand(42))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = x.L1Norm()
	}
}

func BenchmarkSumAxis512x768(b *testing.B) {
	x := Randn(NewShape(512, 768), NewRand(42))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = x.SumAxis(1)
	}
}
