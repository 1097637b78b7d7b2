// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import "github.com/fumi-engineer/saliency/tensor"

// Config holds the hyperparameters of a reference classifier.
type Config struct {
	VocabSize, HiddenDim, MaxSeqLen, NumLabels int
	Seed                                       uint64 // weight initialization seed
	Device                                     tensor.Device
}

// Tiny returns a config small enough for unit tests: 100-token vocabulary,
// 16 hidden units, sequences up to 32 tokens, binary labels.
func Tiny() Config {
	return Config{VocabSize: 100, HiddenDim: 16, MaxSeqLen: 32, NumLabels: 2, Seed: 1, Device: tensor.CPU}
}

// Small returns a config with a BERT-base sized vocabulary and a 64-wide
// hidden layer.
func Small() Config {
	return Config{VocabSize: 30522, HiddenDim: 64, MaxSeqLen: 512, NumLabels: 2, Seed: 1, Device: tensor.CPU}
}

// TotalParams counts the parameters of a classifier built from c.
//
//	tokens + positions + norm + pooler (W, b) + head (W, b)
func (c Config) TotalParams() int {
	h := c.HiddenDim
	return c.VocabSize*h + c.MaxSeqLen*h + h + h*h + h + h*c.NumLabels + c.NumLabels
}
