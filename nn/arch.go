// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import (
	"github.com/fumi-engineer/saliency/tensor"
	"golang.org/x/exp/rand"
)

// Arch enumerates the reference architectures.
type Arch uint8

const (
	Bert Arch = iota
	Roberta
	Camembert
	GPT2
)

// String returns the architecture's short name.
func (a Arch) String() string {
	switch a {
	case Roberta:
		return "roberta"
	case Camembert:
		return "camembert"
	case GPT2:
		return "gpt2"
	default:
		return "bert"
	}
}

// positionOffset is where position ids start. RoBERTa-style models reserve
// the slots up to and including the padding index.
func (a Arch) positionOffset() int {
	if a == Roberta || a == Camembert {
		return 2
	}
	return 0
}

// TextEmbeddings is the input block of the BERT family: token and position
// embeddings summed, then normalized.
//
// Children: word_embeddings, position_embeddings, norm.
type TextEmbeddings struct {
	arch     Arch
	word     *Embedding
	position *Embedding
	norm     *RMSNorm
}

// NewTextEmbeddings builds the embedding block for a BERT-family arch.
func NewTextEmbeddings(arch Arch, cfg Config, rng *rand.Rand) *TextEmbeddings {
	return &TextEmbeddings{
		arch:     arch,
		word:     NewEmbedding(cfg.VocabSize, cfg.HiddenDim, rng),
		position: NewEmbedding(cfg.MaxSeqLen+arch.positionOffset(), cfg.HiddenDim, rng),
		norm:     NewRMSNorm(cfg.HiddenDim, 1e-6),
	}
}

func (e *TextEmbeddings) Type() string {
	switch e.arch {
	case Roberta:
		return "RobertaEmbeddings"
	case Camembert:
		return "CamembertEmbeddings"
	default:
		return "BertEmbeddings"
	}
}

func (e *TextEmbeddings) Children() []Child {
	return []Child{
		{"word_embeddings", e.word},
		{"position_embeddings", e.position},
		{"norm", e.norm},
	}
}

// WordEmbeddings returns the token embedding table.
func (e *TextEmbeddings) WordEmbeddings() *Embedding { return e.word }

// ForwardWith maps [batch, seq] ids to [batch, seq, hidden].
func (e *TextEmbeddings) ForwardWith(rt *Runtime, ids *tensor.Tensor) *tensor.Tensor {
	return sumEmbeddings(rt, e.word, e.position, e.norm, ids, e.arch.positionOffset())
}

// BackwardWith propagates the gradient to both tables.
func (e *TextEmbeddings) BackwardWith(rt *Runtime, gradOutput *tensor.Tensor) *tensor.Tensor {
	return sumEmbeddingsBackward(rt, e.word, e.position, e.norm, gradOutput)
}

// Parameters returns every table and the norm scale.
func (e *TextEmbeddings) Parameters() []*tensor.Tensor {
	return concatParams(e.word.Parameters(), e.position.Parameters(), e.norm.Parameters())
}

// GPT2Model is the GPT-2 shaped backbone reduced to its input path.
//
// Children: wte (token embeddings), wpe (position embeddings), ln_f.
type GPT2Model struct {
	wte *Embedding
	wpe *Embedding
	lnF *RMSNorm
}

// NewGPT2Model builds the GPT-2 backbone.
func NewGPT2Model(cfg Config, rng *rand.Rand) *GPT2Model {
	return &GPT2Model{
		wte: NewEmbedding(cfg.VocabSize, cfg.HiddenDim, rng),
		wpe: NewEmbedding(cfg.MaxSeqLen, cfg.HiddenDim, rng),
		lnF: NewRMSNorm(cfg.HiddenDim, 1e-5),
	}
}

func (g *GPT2Model) Type() string { return "GPT2Model" }

func (g *GPT2Model) Children() []Child {
	return []Child{{"wte", g.wte}, {"wpe", g.wpe}, {"ln_f", g.lnF}}
}

// WTE returns the token embedding table.
func (g *GPT2Model) WTE() *Embedding { return g.wte }

// ForwardWith maps [batch, seq] ids to [batch, seq, hidden].
func (g *GPT2Model) ForwardWith(rt *Runtime, ids *tensor.Tensor) *tensor.Tensor {
	return sumEmbeddings(rt, g.wte, g.wpe, g.lnF, ids, 0)
}

// BackwardWith propagates the gradient to both tables.
func (g *GPT2Model) BackwardWith(rt *Runtime, gradOutput *tensor.Tensor) *tensor.Tensor {
	return sumEmbeddingsBackward(rt, g.wte, g.wpe, g.lnF, gradOutput)
}

// Parameters returns every table and the norm scale.
func (g *GPT2Model) Parameters() []*tensor.Tensor {
	return concatParams(g.wte.Parameters(), g.wpe.Parameters(), g.lnF.Parameters())
}

// sumEmbeddings computes norm(tok(ids) + pos(positions)). The token lookup
// goes through the runtime first, so whatever its observers do to the token
// vectors is what gets summed.
func sumEmbeddings(rt *Runtime, tok, pos *Embedding, norm *RMSNorm, ids *tensor.Tensor, offset int) *tensor.Tensor {
	dims := ids.Shape().DimsRef()
	if len(dims) != 2 {
		panic("input ids must be [batch, seq_len]")
	}
	batch, seqLen := dims[0], dims[1]
	positions := make([]int, batch*seqLen)
	for b := 0; b < batch; b++ {
		for s := 0; s < seqLen; s++ {
			positions[b*seqLen+s] = s + offset
		}
	}

	h := rt.Call(tok, ids)
	p := rt.Call(pos, tensor.FromInts(positions, ids.Shape()).To(ids.Device()))
	return rt.Call(norm, h.Add(p))
}

func sumEmbeddingsBackward(rt *Runtime, tok, pos *Embedding, norm *RMSNorm, gradOutput *tensor.Tensor) *tensor.Tensor {
	g := rt.CallBackward(norm, gradOutput)
	rt.CallBackward(pos, g)
	return rt.CallBackward(tok, g)
}

func concatParams(groups ...[]*tensor.Tensor) []*tensor.Tensor {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	out := make([]*tensor.Tensor, 0, total)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
