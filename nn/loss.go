// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import (
	"errors"
	"fmt"
	"math"

	"github.com/fumi-engineer/saliency/tensor"
)

// ErrLoss is wrapped by every loss evaluation failure.
var ErrLoss = errors.New("loss evaluation failed")

// LossFunc scores a prediction against a label. It returns the scalar loss
// and its gradient with respect to pred, which is what Model.Backward
// consumes.
type LossFunc func(pred, label *tensor.Tensor) (float32, *tensor.Tensor, error)

// CrossEntropy is the mean categorical cross-entropy of [batch, classes]
// logits against [batch] class indices.
//
//	L = -(1/B) * sum_b log(softmax(logits[b])[label[b]])
//	dL/dlogits[b] = (softmax(logits[b]) - one_hot(label[b])) / B
//
// Computed with log-sum-exp for stability.
func CrossEntropy(logits, labels *tensor.Tensor) (float32, *tensor.Tensor, error) {
	if logits.Shape().NDim() != 2 {
		return 0, nil, fmt.Errorf("%w: logits must be [batch, classes], got %v", ErrLoss, logits.Shape())
	}
	batch, classes := logits.Shape().At(0), logits.Shape().At(1)
	if labels.Shape().Numel() != batch {
		return 0, nil, fmt.Errorf("%w: %d labels for batch of %d", ErrLoss, labels.Shape().Numel(), batch)
	}
	if labels.Device() != logits.Device() {
		return 0, nil, fmt.Errorf("%w: labels on %s, logits on %s", ErrLoss, labels.Device(), logits.Device())
	}

	grad := tensor.ZerosLike(logits)
	x, g := logits.DataPtr(), grad.DataPtr()
	total := float64(0)
	for b, target := range labels.Ints() {
		if target < 0 || target >= classes {
			return 0, nil, fmt.Errorf("%w: label %d out of range [0, %d)", ErrLoss, target, classes)
		}
		row := x[b*classes : (b+1)*classes]
		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		sumExp := float64(0)
		for _, v := range row {
			sumExp += math.Exp(float64(v - maxVal))
		}
		logSum := math.Log(sumExp)
		total -= float64(row[target]-maxVal) - logSum

		gRow := g[b*classes : (b+1)*classes]
		for i, v := range row {
			gRow[i] = float32(math.Exp(float64(v-maxVal)-logSum)) / float32(batch)
		}
		gRow[target] -= 1 / float32(batch)
	}
	return float32(total / float64(batch)), grad, nil
}
