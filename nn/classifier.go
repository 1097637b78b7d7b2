// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import (
	"fmt"

	"github.com/fumi-engineer/saliency/hook"
	"github.com/fumi-engineer/saliency/tensor"
)

// Classifier is a sequence classifier over one of the reference backbones.
//
//	ids -> backbone -> mean over positions -> pooler -> SiLU -> head -> logits
//
// It implements Model: every module, the classifier itself included, fires
// its observers when the classifier runs it.
type Classifier struct {
	*Runtime
	arch     Arch
	cfg      Config
	backbone Block
	pooler   *Linear
	act      *SiLU
	head     *Linear
	seqLen   int
}

// NewClassifier builds a classifier for arch with weights drawn from
// cfg.Seed.
func NewClassifier(arch Arch, cfg Config) *Classifier {
	rng := tensor.NewRand(cfg.Seed)
	var backbone Block
	if arch == GPT2 {
		backbone = NewGPT2Model(cfg, rng)
	} else {
		backbone = NewTextEmbeddings(arch, cfg, rng)
	}
	return &Classifier{
		Runtime:  NewRuntime(cfg.Device),
		arch:     arch,
		cfg:      cfg,
		backbone: backbone,
		pooler:   NewLinear(cfg.HiddenDim, cfg.HiddenDim, true, rng),
		act:      NewSiLU(),
		head:     NewLinear(cfg.HiddenDim, cfg.NumLabels, true, rng),
	}
}

// NewBertClassifier builds a BERT-shaped classifier.
func NewBertClassifier(cfg Config) *Classifier { return NewClassifier(Bert, cfg) }

// NewGPT2Classifier builds a GPT-2 shaped classifier.
func NewGPT2Classifier(cfg Config) *Classifier { return NewClassifier(GPT2, cfg) }

func (c *Classifier) Type() string {
	switch c.arch {
	case Roberta:
		return "RobertaForSequenceClassification"
	case Camembert:
		return "CamembertForSequenceClassification"
	case GPT2:
		return "GPT2ForSequenceClassification"
	default:
		return "BertForSequenceClassification"
	}
}

func (c *Classifier) Children() []Child {
	backboneName, headName := "embeddings", "classifier"
	if c.arch == GPT2 {
		backboneName, headName = "transformer", "score"
	}
	return []Child{
		{backboneName, c.backbone},
		{"pooler", c.pooler},
		{"activation", c.act},
		{headName, c.head},
	}
}

// Root returns the classifier itself.
func (c *Classifier) Root() Module { return c }

// Config returns the classifier's configuration.
func (c *Classifier) Config() Config { return c.cfg }

// Backbone returns the input block (TextEmbeddings or GPT2Model).
func (c *Classifier) Backbone() Block { return c.backbone }

// Head returns the output projection.
func (c *Classifier) Head() *Linear { return c.head }

// Forward maps [batch, seq_len] token ids to [batch, num_labels] logits.
func (c *Classifier) Forward(input *tensor.Tensor) (logits *tensor.Tensor, err error) {
	defer recoverInto(&err, ErrForward)
	if input.Shape().NDim() != 2 {
		return nil, fmt.Errorf("%w: input must be [batch, seq_len], got %v", ErrForward, input.Shape())
	}
	if n := input.Shape().At(1); n == 0 || n > c.cfg.MaxSeqLen {
		return nil, fmt.Errorf("%w: sequence length %d outside [1, %d]", ErrForward, n, c.cfg.MaxSeqLen)
	}
	input = input.To(c.device)

	h := c.Call(c.backbone, input)
	c.seqLen = h.Shape().At(1)
	z := c.Call(c.pooler, meanPool(h))
	a := c.Call(c.act, z)
	logits = c.Call(c.head, a)
	c.hooks.Fire(hook.Forward, c, []*tensor.Tensor{input}, []*tensor.Tensor{logits})
	return logits, nil
}

// Backward propagates dL/dlogits through the whole network, accumulating
// parameter gradients.
func (c *Classifier) Backward(gradOutput *tensor.Tensor) (err error) {
	defer recoverInto(&err, ErrBackward)
	if c.seqLen == 0 {
		return fmt.Errorf("%w: backward called before forward", ErrBackward)
	}
	g := c.CallBackward(c.head, gradOutput)
	g = c.CallBackward(c.act, g)
	g = c.CallBackward(c.pooler, g)
	gIn := c.CallBackward(c.backbone, meanPoolBackward(g, c.seqLen))
	c.hooks.Fire(hook.Backward, c, []*tensor.Tensor{visitOrder(gIn)}, []*tensor.Tensor{visitOrder(gradOutput)})
	return nil
}

// ZeroGrad resets every parameter gradient.
func (c *Classifier) ZeroGrad() {
	for _, p := range c.Parameters() {
		p.ZeroGrad()
	}
}

// Parameters returns every trainable tensor of the model.
func (c *Classifier) Parameters() []*tensor.Tensor {
	return concatParams(c.backbone.Parameters(), c.pooler.Parameters(), c.head.Parameters())
}

// meanPool averages [batch, seq, hidden] over seq.
func meanPool(h *tensor.Tensor) *tensor.Tensor {
	seqLen := h.Shape().At(1)
	out := h.SumAxis(1)
	out.ScaleInPlace(1 / float32(seqLen))
	return out
}

// meanPoolBackward spreads a [batch, hidden] gradient evenly over seqLen
// positions.
func meanPoolBackward(g *tensor.Tensor, seqLen int) *tensor.Tensor {
	batch, hidden := g.Shape().At(0), g.Shape().At(1)
	out := tensor.New(tensor.NewShape(batch, seqLen, hidden), tensor.F32).To(g.Device())
	src, dst := g.DataPtr(), out.DataPtr()
	inv := 1 / float32(seqLen)
	for b := 0; b < batch; b++ {
		for s := 0; s < seqLen; s++ {
			row := dst[(b*seqLen+s)*hidden : (b*seqLen+s+1)*hidden]
			for i, v := range src[b*hidden : (b+1)*hidden] {
				row[i] = v * inv
			}
		}
	}
	return out
}
