package model

import (
	"fmt"
	"math/rand"
)

// MaxPool1D keeps the maximum of each non-overlapping window of PoolSize steps.
type MaxPool1D struct {
	PoolSize int

	outLen int
}

// NewMaxPool1D returns a pooling layer with stride equal to the pool size.
func NewMaxPool1D(poolSize int) *MaxPool1D {
	return &MaxPool1D{PoolSize: poolSize}
}

// Kind returns the layer type shown in summaries.
func (m *MaxPool1D) Kind() string { return "MaxPooling1D" }

// Params returns nil: pooling has no weights.
func (m *MaxPool1D) Params() []*Param { return nil }

// Build computes the pooled length, dropping a trailing partial window.
func (m *MaxPool1D) Build(in Shape, _ *rand.Rand) (Shape, error) {
	if m.PoolSize <= 0 {
		return Shape{}, fmt.Errorf("maxpool1d: pool size must be > 0")
	}
	if !in.IsSequence() {
		return Shape{}, fmt.Errorf("maxpool1d: expects a sequence, got %s", in)
	}
	if in.Steps < m.PoolSize {
		return Shape{}, fmt.Errorf("maxpool1d: pool %d longer than sequence %d", m.PoolSize, in.Steps)
	}
	m.outLen = (in.Steps-m.PoolSize)/m.PoolSize + 1
	return Shape{Steps: m.outLen, Features: in.Features}, nil
}

type poolCache struct {
	in     Shape
	argmax []int // index into the input data per output value
}

// Forward records the argmax of every window.
func (m *MaxPool1D) Forward(x *Tensor, _ *Pass) (*Tensor, any) {
	out := NewTensor(Shape{Steps: m.outLen, Features: x.Features})
	argmax := make([]int, len(out.Data))
	for t := 0; t < m.outLen; t++ {
		start := t * m.PoolSize
		for f := 0; f < x.Features; f++ {
			best := start*x.Features + f
			for k := 1; k < m.PoolSize; k++ {
				idx := (start+k)*x.Features + f
				if x.Data[idx] > x.Data[best] {
					best = idx
				}
			}
			o := t*x.Features + f
			out.Data[o] = x.Data[best]
			argmax[o] = best
		}
	}
	return out, &poolCache{in: x.Shape, argmax: argmax}
}

// Backward routes each gradient to the step that won its window.
func (m *MaxPool1D) Backward(dy *Tensor, cache any, _ Gradients) *Tensor {
	pc := cache.(*poolCache)
	dx := NewTensor(pc.in)
	for o, g := range dy.Data {
		dx.Data[pc.argmax[o]] += g
	}
	return dx
}
