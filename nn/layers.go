// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import (
	"math"

	"github.com/fumi-engineer/saliency/tensor"
	"golang.org/x/exp/rand"
)

// ---------------------------------------------------------------------------
// Embedding
// ---------------------------------------------------------------------------

// Embedding is a lookup table: token ID -> dense vector.
//
//	output[b, s, :] = weight[token_ids[b, s], :]
//
// Weight shape: [vocab_size, embed_dim].
type Embedding struct {
	weight    *tensor.Tensor
	vocabSize int
	embedDim  int
	lastInput []int
	lastShape tensor.Shape
}

// NewEmbedding creates an embedding table initialized with N(0, 2/d).
func NewEmbedding(vocabSize, embedDim int, rng *rand.Rand) *Embedding {
	std := float32(math.Sqrt(2.0 / float64(embedDim)))
	return &Embedding{
		weight:    tensor.RandnWithStd(tensor.NewShape(vocabSize, embedDim), rng, std),
		vocabSize: vocabSize,
		embedDim:  embedDim,
	}
}

func (e *Embedding) Type() string      { return "Embedding" }
func (e *Embedding) Children() []Child { return nil }

// Forward looks up one vector per token id.
// Input: [batch, seq_len] of float32-encoded ids. Output: [batch, seq_len, embed_dim].
func (e *Embedding) Forward(input *tensor.Tensor) *tensor.Tensor {
	dims := input.Shape().DimsRef()
	if len(dims) != 2 {
		panic("embedding input must be [batch, seq_len]")
	}
	batch, seqLen := dims[0], dims[1]

	e.lastInput = input.Ints()
	e.lastShape = input.Shape()

	output := tensor.New(tensor.NewShape(batch, seqLen, e.embedDim), tensor.F32).To(input.Device())
	out, w := output.DataPtr(), e.weight.DataPtr()
	for i, tid := range e.lastInput {
		if tid < 0 || tid >= e.vocabSize {
			panic("token ID out of range")
		}
		copy(out[i*e.embedDim:(i+1)*e.embedDim], w[tid*e.embedDim:(tid+1)*e.embedDim])
	}
	return output
}

// Backward scatter-adds gradOutput into the weight gradient and returns a
// zero gradient shaped like the ids (ids are not differentiable).
func (e *Embedding) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if e.lastInput == nil {
		panic("backward called before forward")
	}
	gData := gradOutput.DataPtr()
	if len(gData) != len(e.lastInput)*e.embedDim {
		panic("embedding gradient does not match the last forward pass")
	}
	wGrad := make([]float32, e.vocabSize*e.embedDim)
	for i, tid := range e.lastInput {
		row := gData[i*e.embedDim : (i+1)*e.embedDim]
		dst := wGrad[tid*e.embedDim : (tid+1)*e.embedDim]
		for d, g := range row {
			dst[d] += g
		}
	}
	e.weight.AccumulateGrad(wGrad)
	return tensor.Zeros(e.lastShape, tensor.F32).To(gradOutput.Device())
}

// Parameters returns the embedding table.
func (e *Embedding) Parameters() []*tensor.Tensor { return []*tensor.Tensor{e.weight} }

// Weight returns the embedding table for inspection or loading.
func (e *Embedding) Weight() *tensor.Tensor { return e.weight }

// VocabSize returns the vocabulary size.
func (e *Embedding) VocabSize() int { return e.vocabSize }

// EmbedDim returns the embedding dimension.
func (e *Embedding) EmbedDim() int { return e.embedDim }

// ---------------------------------------------------------------------------
// Linear
// ---------------------------------------------------------------------------

// Linear computes y = x @ W^T + b.
//
// Weight shape: [out_features, in_features], so the forward pass can use
// MatmulTransposedB without materializing W^T.
type Linear struct {
	weight    *tensor.Tensor
	bias      *tensor.Tensor
	inFeat    int
	outFeat   int
	lastInput *tensor.Tensor
}

// NewLinear creates a linear layer with Kaiming initialization N(0, 2/in).
func NewLinear(inFeatures, outFeatures int, useBias bool, rng *rand.Rand) *Linear {
	std := float32(math.Sqrt(2.0 / float64(inFeatures)))
	l := &Linear{
		weight:  tensor.RandnWithStd(tensor.NewShape(outFeatures, inFeatures), rng, std),
		inFeat:  inFeatures,
		outFeat: outFeatures,
	}
	if useBias {
		l.bias = tensor.Zeros(tensor.NewShape(outFeatures), tensor.F32)
	}
	return l
}

func (l *Linear) Type() string      { return "Linear" }
func (l *Linear) Children() []Child { return nil }

// Forward computes y = x @ W^T (+ bias). Leading dims of the input are
// treated as a flat batch and restored on the output.
func (l *Linear) Forward(input *tensor.Tensor) *tensor.Tensor {
	l.lastInput = input
	lead, batchSize := splitLast(input.Shape().DimsRef(), l.inFeat)
	output := tensor.MatmulTransposedB(input.Reshape(tensor.NewShape(batchSize, l.inFeat)), l.weight)

	if l.bias != nil {
		out, b := output.DataPtr(), l.bias.DataPtr()
		for i := 0; i < batchSize; i++ {
			row := out[i*l.outFeat : (i+1)*l.outFeat]
			for j := range row {
				row[j] += b[j]
			}
		}
	}
	return output.Reshape(withLastDim(lead, l.outFeat)).To(input.Device())
}

// Backward returns dL/dx = dL/dy @ W and accumulates dW = dL/dy^T @ x and
// db = sum(dL/dy).
func (l *Linear) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if l.lastInput == nil {
		panic("backward called before forward")
	}
	_, batchSize := splitLast(gradOutput.Shape().DimsRef(), l.outFeat)
	flatGrad := gradOutput.Reshape(tensor.NewShape(batchSize, l.outFeat))
	flatInput := l.lastInput.Reshape(tensor.NewShape(batchSize, l.inFeat))

	gradInput := tensor.Matmul(flatGrad, l.weight)

	dW := make([]float32, l.outFeat*l.inFeat)
	tensor.MatmulTransposedA(l.outFeat, l.inFeat, batchSize, flatGrad.DataPtr(), flatInput.DataPtr(), dW)
	l.weight.AccumulateGrad(dW)

	if l.bias != nil {
		db := make([]float32, l.outFeat)
		fg := flatGrad.DataPtr()
		for i := 0; i < batchSize; i++ {
			for j, g := range fg[i*l.outFeat : (i+1)*l.outFeat] {
				db[j] += g
			}
		}
		l.bias.AccumulateGrad(db)
	}
	return gradInput.Reshape(l.lastInput.Shape()).To(gradOutput.Device())
}

// Parameters returns the weight and, if present, the bias.
func (l *Linear) Parameters() []*tensor.Tensor {
	if l.bias != nil {
		return []*tensor.Tensor{l.weight, l.bias}
	}
	return []*tensor.Tensor{l.weight}
}

// Weight returns the [out, in] weight matrix.
func (l *Linear) Weight() *tensor.Tensor { return l.weight }

// Bias returns the bias vector, or nil.
func (l *Linear) Bias() *tensor.Tensor { return l.bias }

// ---------------------------------------------------------------------------
// RMSNorm
// ---------------------------------------------------------------------------

// RMSNorm implements Root Mean Square Layer Normalization over the last dim.
//
//	y = x / sqrt(mean(x^2) + eps) * weight
type RMSNorm struct {
	weight    *tensor.Tensor
	eps       float32
	dim       int
	lastInput *tensor.Tensor
	lastRMS   []float32
}

// NewRMSNorm creates an RMSNorm layer with unit weights.
func NewRMSNorm(dim int, eps float32) *RMSNorm {
	return &RMSNorm{
		weight: tensor.Ones(tensor.NewShape(dim), tensor.F32),
		eps:    eps,
		dim:    dim,
	}
}

func (r *RMSNorm) Type() string      { return "RMSNorm" }
func (r *RMSNorm) Children() []Child { return nil }

// Forward normalizes every last-dim vector.
func (r *RMSNorm) Forward(input *tensor.Tensor) *tensor.Tensor {
	r.lastInput = input.Clone()
	numVectors := input.Shape().Numel() / r.dim
	r.lastRMS = make([]float32, numVectors)

	output := tensor.ZerosLike(input)
	in, out, w := input.DataPtr(), output.DataPtr(), r.weight.DataPtr()
	for v := 0; v < numVectors; v++ {
		off := v * r.dim
		sumSq := float32(0)
		for _, x := range in[off : off+r.dim] {
			sumSq += x * x
		}
		rms := float32(math.Sqrt(float64(sumSq/float32(r.dim) + r.eps)))
		r.lastRMS[v] = rms
		for i := 0; i < r.dim; i++ {
			out[off+i] = in[off+i] / rms * w[i]
		}
	}
	return output
}

// Backward computes dL/dx and accumulates dL/dweight.
//
//	dx_i = g_i*w_i/rms - x_i * sum_j(g_j*w_j*x_j) / (dim * rms^3)
func (r *RMSNorm) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if r.lastInput == nil {
		panic("backward called before forward")
	}
	numVectors := gradOutput.Shape().Numel() / r.dim
	gradInput := tensor.ZerosLike(gradOutput)
	g, gi := gradOutput.DataPtr(), gradInput.DataPtr()
	x, w := r.lastInput.DataPtr(), r.weight.DataPtr()
	dW := make([]float32, r.dim)

	for v := 0; v < numVectors; v++ {
		off := v * r.dim
		rms := r.lastRMS[v]
		rms3 := rms * rms * rms
		dot := float32(0)
		for i := 0; i < r.dim; i++ {
			dot += g[off+i] * w[i] * x[off+i]
			dW[i] += g[off+i] * x[off+i] / rms
		}
		for i := 0; i < r.dim; i++ {
			gi[off+i] = g[off+i]*w[i]/rms - x[off+i]*dot/(float32(r.dim)*rms3)
		}
	}
	r.weight.AccumulateGrad(dW)
	return gradInput
}

// Parameters returns the scale vector.
func (r *RMSNorm) Parameters() []*tensor.Tensor { return []*tensor.Tensor{r.weight} }

// ---------------------------------------------------------------------------
// SiLU
// ---------------------------------------------------------------------------

// SiLU is the parameter-free activation x * sigmoid(x).
type SiLU struct {
	lastInput *tensor.Tensor
}

// NewSiLU returns a SiLU activation layer.
func NewSiLU() *SiLU { return &SiLU{} }

func (s *SiLU) Type() string      { return "SiLU" }
func (s *SiLU) Children() []Child { return nil }

// Forward applies SiLU element-wise.
func (s *SiLU) Forward(input *tensor.Tensor) *tensor.Tensor {
	s.lastInput = input.Clone()
	return input.SiLU()
}

// Backward uses d/dx SiLU(x) = sig(x) * (1 + x*(1 - sig(x))).
func (s *SiLU) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if s.lastInput == nil {
		panic("backward called before forward")
	}
	gradInput := tensor.ZerosLike(gradOutput)
	g, gi, x := gradOutput.DataPtr(), gradInput.DataPtr(), s.lastInput.DataPtr()
	for i := range gi {
		sig := tensor.Sigmoid(x[i])
		gi[i] = g[i] * sig * (1 + x[i]*(1-sig))
	}
	return gradInput
}

// Parameters returns nil; SiLU has no weights.
func (s *SiLU) Parameters() []*tensor.Tensor { return nil }

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// splitLast checks the last dim against want and returns the leading dims
// and their product, so [batch, seq, hidden] can run as (batch*seq, hidden).
func splitLast(dims []int, want int) ([]int, int) {
	if len(dims) == 0 || dims[len(dims)-1] != want {
		panic("last dimension does not match layer width")
	}
	lead := dims[:len(dims)-1]
	n := 1
	for _, d := range lead {
		n *= d
	}
	return lead, n
}

func withLastDim(dims []int, last int) tensor.Shape {
	out := append(append([]int(nil), dims...), last)
	return tensor.NewShape(out...)
}
