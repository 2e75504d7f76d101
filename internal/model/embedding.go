package model

import (
	"fmt"
	"math/rand"
)

// Embedding maps token ids to dense vectors. Its input is a single-feature
// sequence tensor holding the ids.
type Embedding struct {
	VocabSize int
	Dim       int

	weight *Param
}

// NewEmbedding returns an embedding table of vocabSize rows of width dim.
func NewEmbedding(vocabSize, dim int) *Embedding {
	return &Embedding{VocabSize: vocabSize, Dim: dim}
}

// Kind returns the layer type shown in summaries.
func (e *Embedding) Kind() string { return "Embedding" }

// Params returns the trainable weights.
func (e *Embedding) Params() []*Param { return []*Param{e.weight} }

// Build allocates the table and maps a token sequence to (steps, dim).
func (e *Embedding) Build(in Shape, rng *rand.Rand) (Shape, error) {
	if e.VocabSize <= 0 || e.Dim <= 0 {
		return Shape{}, fmt.Errorf("embedding: vocab size and dim must be > 0")
	}
	if !in.IsSequence() || in.Features != 1 {
		return Shape{}, fmt.Errorf("embedding: expects a token sequence, got %s", in)
	}
	e.weight = newParam("embeddings", e.VocabSize, e.Dim)
	uniform(rng, e.weight.Data, -0.05, 0.05)
	return Shape{Steps: in.Steps, Features: e.Dim}, nil
}

// Forward looks up one row per token id.
func (e *Embedding) Forward(x *Tensor, _ *Pass) (*Tensor, any) {
	out := NewTensor(Shape{Steps: x.Steps, Features: e.Dim})
	ids := make([]int, x.Steps)
	for t := 0; t < x.Steps; t++ {
		id := int(x.Data[t])
		ids[t] = id
		copy(out.Row(t), e.weight.Data[id*e.Dim:(id+1)*e.Dim])
	}
	return out, ids
}

// Backward scatter-adds dy into the rows that were looked up. Token ids have
// no gradient, so the returned tensor is nil.
func (e *Embedding) Backward(dy *Tensor, cache any, grads Gradients) *Tensor {
	ids := cache.([]int)
	gw := grads[e.weight]
	for t, id := range ids {
		row := gw[id*e.Dim : (id+1)*e.Dim]
		for j, v := range dy.Row(t) {
			row[j] += v
		}
	}
	return nil
}
