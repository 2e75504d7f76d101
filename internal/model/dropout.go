package model

import (
	"fmt"
	"math/rand"
)

// Dropout zeroes activations with probability Rate during training and
// scales the survivors by 1/(1-Rate). It is the identity at inference.
type Dropout struct {
	Rate float64
}

// NewDropout returns a dropout layer.
func NewDropout(rate float64) *Dropout {
	return &Dropout{Rate: rate}
}

// Kind returns the layer type shown in summaries.
func (d *Dropout) Kind() string { return "Dropout" }

// Params returns nil: dropout has no weights.
func (d *Dropout) Params() []*Param { return nil }

// Build checks the rate; the shape passes through unchanged.
func (d *Dropout) Build(in Shape, _ *rand.Rand) (Shape, error) {
	if d.Rate < 0 || d.Rate >= 1 {
		return Shape{}, fmt.Errorf("dropout: rate must be in [0, 1), got %g", d.Rate)
	}
	return in, nil
}

// Forward samples a mask from pass.RNG when training.
func (d *Dropout) Forward(x *Tensor, pass *Pass) (*Tensor, any) {
	if pass == nil || !pass.Training || d.Rate == 0 {
		return x, nil
	}
	scale := 1 / (1 - d.Rate)
	mask := make([]float64, len(x.Data))
	out := NewTensor(x.Shape)
	for i, v := range x.Data {
		if pass.RNG.Float64() >= d.Rate {
			mask[i] = scale
			out.Data[i] = v * scale
		}
	}
	return out, mask
}

// Backward applies the forward mask to dy.
func (d *Dropout) Backward(dy *Tensor, cache any, _ Gradients) *Tensor {
	if cache == nil {
		return dy
	}
	mask := cache.([]float64)
	dx := NewTensor(dy.Shape)
	for i, v := range dy.Data {
		dx.Data[i] = v * mask[i]
	}
	return dx
}
