// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package saliency

import (
	"fmt"

	"github.com/fumi-engineer/saliency/hook"
	"github.com/fumi-engineer/saliency/nn"
	"github.com/fumi-engineer/saliency/tensor"
)

// observed is what one pass sees at the embedding layer for the first
// sequence of the batch, both [seq_len, hidden] in forward order.
type observed struct {
	embedding *tensor.Tensor
	gradient  *tensor.Tensor
}

// pass runs forward, loss and backward once with the embedding layer
// observed. transform, if non-nil, runs before the embedding output is
// recorded and may modify it in place. Everything attached here is detached
// before pass returns.
func (e *Engine) pass(step int, input, label *tensor.Tensor, loss nn.LossFunc, transform hook.Func) (observed, error) {
	var scope hook.Scope
	defer scope.Close()

	fail := func(op string, err error) (observed, error) {
		return observed{}, &ComputationError{Algorithm: e.algorithm, Step: step, Op: op, Err: err}
	}

	if transform != nil {
		scope.Add(e.model.RegisterForwardHook(e.embedding, transform))
	}
	outputs, grads := hook.NewSink(), hook.NewSink()
	scope.Add(e.model.RegisterForwardHook(e.embedding, outputs.Observe))
	scope.Add(e.model.RegisterBackwardHook(e.embedding, grads.Observe))

	e.model.ZeroGrad()
	pred, err := e.model.Forward(input)
	if err != nil {
		return fail("forward", err)
	}
	value, gradPred, err := loss(pred, label)
	if err != nil {
		return fail("loss", err)
	}
	if err := e.model.Backward(gradPred); err != nil {
		return fail("backward", err)
	}

	if outputs.Len() == 0 || grads.Len() == 0 {
		return fail("capture", errNoCapture)
	}
	emb, g := outputs.Values()[0].Tensor(0), grads.Values()[0].Tensor(0)
	if emb == nil || g == nil || emb.Shape().NDim() != 3 || !emb.Shape().Equal(g.Shape()) {
		return fail("capture", fmt.Errorf("embedding output %v and gradient %v are not matching [batch, seq_len, hidden] tensors",
			shapeOf(emb), shapeOf(g)))
	}

	e.log.Debug("saliency pass", "algorithm", e.algorithm, "step", step, "loss", value)
	// the gradient arrives in visit order; flip positions back
	return observed{embedding: emb.Index(0), gradient: g.Index(0).Flip(0)}, nil
}

// simple scores token t as |sum_d e[t,d]*g[t,d]|, L1-normalized over tokens.
func (e *Engine) simple(input, label *tensor.Tensor, loss nn.LossFunc) ([]float32, error) {
	obs, err := e.pass(0, input, label, loss, nil)
	if err != nil {
		return nil, err
	}
	perToken := obs.embedding.Mul(obs.gradient).SumAxis(1)
	return normalizeTokens(perToken), nil
}

// integrated averages the gradient over scaled copies of the embedding
// output and multiplies the average by the unscaled embedding.
func (e *Engine) integrated(input, label *tensor.Tensor, loss nn.LossFunc) ([]float32, error) {
	var original, total *tensor.Tensor
	for step, alpha := range linspace(0.1, 1, e.steps) {
		scale := func(_ hook.Site, _, out []*tensor.Tensor) {
			if original == nil {
				original = out[0].Clone()
			}
			out[0].ScaleInPlace(alpha)
		}
		obs, err := e.pass(step, input, label, loss, scale)
		if err != nil {
			return nil, err
		}
		total = accumulate(total, obs.gradient)
	}
	return finish(original, total, e.steps), nil
}

// smooth averages the gradient over noisy copies of the embedding output.
// Noise is N(0, (stdDev * (max - min))^2) with max and min taken over the
// current output.
func (e *Engine) smooth(input, label *tensor.Tensor, loss nn.LossFunc) ([]float32, error) {
	var original, total *tensor.Tensor
	for step := 0; step < e.samples; step++ {
		perturb := func(_ hook.Site, _, out []*tensor.Tensor) {
			if original == nil {
				original = out[0].Clone()
			}
			std := e.stdDev * (out[0].Max() - out[0].Min())
			noise := tensor.RandnWithStd(out[0].Shape(), e.rng, std).To(out[0].Device())
			out[0].AddInPlace(noise)
		}
		obs, err := e.pass(step, input, label, loss, perturb)
		if err != nil {
			return nil, err
		}
		total = accumulate(total, obs.gradient)
	}
	return finish(original, total, e.samples), nil
}

// finish turns a gradient sum over n passes into token scores:
// prod = original * (total / n), score_t = sum_d |prod[t,d]| / ||prod||_1.
func finish(original, total *tensor.Tensor, n int) []float32 {
	total.ScaleInPlace(1 / float32(n))
	prod := original.Index(0).Mul(total)
	norm := prod.L1Norm()
	scores := prod.Abs().SumAxis(1)
	if norm == 0 {
		return make([]float32, scores.Shape().Numel())
	}
	scores.ScaleInPlace(1 / norm)
	return scores.Data()
}

// normalizeTokens returns |v| / ||v||_1, or zeros when the norm is zero.
func normalizeTokens(v *tensor.Tensor) []float32 {
	norm := v.L1Norm()
	if norm == 0 {
		return make([]float32, v.Shape().Numel())
	}
	out := v.Abs()
	out.ScaleInPlace(1 / norm)
	return out.Data()
}

func accumulate(total, g *tensor.Tensor) *tensor.Tensor {
	if total == nil {
		return g.Clone()
	}
	total.AddInPlace(g)
	return total
}

// linspace returns n evenly spaced values from start to end inclusive. A
// single value is end.
func linspace(start, end float32, n int) []float32 {
	if n == 1 {
		return []float32{end}
	}
	out := make([]float32, n)
	step := (end - start) / float32(n-1)
	for i := range out {
		out[i] = start + float32(i)*step
	}
	out[n-1] = end
	return out
}

func shapeOf(t *tensor.Tensor) any {
	if t == nil {
		return "nil"
	}
	return t.Shape()
}
