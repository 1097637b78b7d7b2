// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

// Package saliency scores how much each input token contributed to a
// model's prediction for a given label.
//
// The engine observes one embedding layer of the model. Each pass attaches
// observers to that layer, runs forward, evaluates the loss and runs
// backward; the observed embedding output and the gradient reaching it are
// combined into one score per token. Three estimators are available:
//
//	simple_gradient      one pass, gradient x input
//	integrated_gradient  embedding scaled by alpha in linspace(0.1, 1, steps)
//	smooth_gradient      embedding perturbed by Gaussian noise, averaged
//
// Every observer an estimator attaches is detached before the pass that
// attached it returns, on success and on failure alike.
package saliency

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/fumi-engineer/saliency/nn"
	"github.com/fumi-engineer/saliency/tensor"
	"golang.org/x/exp/rand"
)

// Algorithm names a saliency estimator.
type Algorithm string

const (
	Simple     Algorithm = "simple_gradient"
	Integrated Algorithm = "integrated_gradient"
	Smooth     Algorithm = "smooth_gradient"
)

// ParseAlgorithm validates an estimator name.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(name); a {
	case Simple, Integrated, Smooth:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown algorithm %q", ErrInvalidConfig, name)
}

func (a Algorithm) String() string { return string(a) }

const (
	DefaultSteps   = 10
	DefaultSamples = 10
	DefaultStdDev  = 0.01
	DefaultSeed    = 1
)

type settings struct {
	embedding nn.Module
	algorithm Algorithm
	steps     int
	samples   int
	stdDev    float32
	seed      uint64
	log       *slog.Logger
}

// Option configures an Engine.
type Option func(*settings)

// WithEmbeddingLayer binds the engine to layer instead of detecting one.
func WithEmbeddingLayer(layer nn.Module) Option {
	return func(s *settings) { s.embedding = layer }
}

// WithAlgorithm selects the estimator. Default: simple_gradient.
func WithAlgorithm(a Algorithm) Option {
	return func(s *settings) { s.algorithm = a }
}

// WithSteps sets the number of interpolation steps of integrated_gradient.
func WithSteps(n int) Option {
	return func(s *settings) { s.steps = n }
}

// WithSamples sets the number of noisy samples of smooth_gradient.
func WithSamples(n int) Option {
	return func(s *settings) { s.samples = n }
}

// WithStdDev sets the noise level of smooth_gradient, relative to the value
// range of the embedding output.
func WithStdDev(std float32) Option {
	return func(s *settings) { s.stdDev = std }
}

// WithSeed seeds the noise generator of smooth_gradient.
func WithSeed(seed uint64) Option {
	return func(s *settings) { s.seed = seed }
}

// WithLogger sets the logger used for per-step debug records.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// Engine computes token saliency for one model.
type Engine struct {
	model     nn.Model
	embedding nn.Module
	path      string
	algorithm Algorithm
	steps     int
	samples   int
	stdDev    float32
	rng       *rand.Rand
	log       *slog.Logger
}

// New binds an engine to model. Without WithEmbeddingLayer the embedding
// layer is detected from the model tree.
func New(model nn.Model, opts ...Option) (*Engine, error) {
	s := settings{
		algorithm: Simple,
		steps:     DefaultSteps,
		samples:   DefaultSamples,
		stdDev:    DefaultStdDev,
		seed:      DefaultSeed,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	algorithm, err := ParseAlgorithm(string(s.algorithm))
	if err != nil {
		return nil, err
	}
	switch {
	case s.steps < 1:
		return nil, fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidConfig, s.steps)
	case s.samples < 1:
		return nil, fmt.Errorf("%w: samples must be positive, got %d", ErrInvalidConfig, s.samples)
	case s.stdDev < 0:
		return nil, fmt.Errorf("%w: negative std-dev %g", ErrInvalidConfig, s.stdDev)
	}

	root := model.Root()
	var (
		layer nn.Module
		path  string
	)
	if s.embedding != nil {
		p, ok := pathOf(root, s.embedding)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidEmbeddingLayer, s.embedding.Type())
		}
		layer, path = s.embedding, p
	} else if layer, path, err = detectEmbedding(root); err != nil {
		return nil, err
	}

	s.log.Debug("saliency engine ready", "algorithm", algorithm, "embedding", path)
	return &Engine{
		model:     model,
		embedding: layer,
		path:      path,
		algorithm: algorithm,
		steps:     s.steps,
		samples:   s.samples,
		stdDev:    s.stdDev,
		rng:       tensor.NewRand(s.seed),
		log:       s.log,
	}, nil
}

// EmbeddingLayer returns the observed layer.
func (e *Engine) EmbeddingLayer() nn.Module { return e.embedding }

// EmbeddingPath returns the dotted path of the observed layer.
func (e *Engine) EmbeddingPath() string { return e.path }

// Algorithm returns the configured estimator.
func (e *Engine) Algorithm() Algorithm { return e.algorithm }

// Saliency returns one non-negative score per token of the first sequence
// in input, for the prediction of label. A nil loss means nn.CrossEntropy.
// Scores sum to 1 unless every attribution is zero, in which case they are
// all zero.
func (e *Engine) Saliency(input, label *tensor.Tensor, loss nn.LossFunc) ([]float32, error) {
	if loss == nil {
		loss = nn.CrossEntropy
	}
	label = label.To(e.model.Device())

	switch e.algorithm {
	case Integrated:
		return e.integrated(input, label, loss)
	case Smooth:
		return e.smooth(input, label, loss)
	default:
		return e.simple(input, label, loss)
	}
}

// Attribution is a saliency result with its provenance.
type Attribution struct {
	Algorithm Algorithm
	Scores    []float32
}

// Explain is Saliency with the result wrapped in an Attribution.
func (e *Engine) Explain(input, label *tensor.Tensor, loss nn.LossFunc) (*Attribution, error) {
	scores, err := e.Saliency(input, label, loss)
	if err != nil {
		return nil, err
	}
	return &Attribution{Algorithm: e.algorithm, Scores: scores}, nil
}

// Len returns the number of tokens scored.
func (a *Attribution) Len() int { return len(a.Scores) }

// TopK returns the positions of the k highest scores, best first. Ties keep
// token order. k larger than the token count returns every position.
func (a *Attribution) TopK(k int) []int {
	idx := make([]int, len(a.Scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return a.Scores[idx[i]] > a.Scores[idx[j]] })
	if k < 0 {
		k = 0
	}
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}
