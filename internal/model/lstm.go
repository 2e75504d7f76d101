package model

import (
	"fmt"
	"math"
	"math/rand"
)

// LSTM is a long short-term memory layer. Gates are laid out in the order
// input, forget, cell, output along the 4*Units axis of every weight.
type LSTM struct {
	Units int

	in        int
	steps     int
	kernel    *Param // [in][4*Units]
	recurrent *Param // [Units][4*Units]
	bias      *Param // [4*Units]
}

// NewLSTM returns an LSTM layer that emits its final hidden state.
func NewLSTM(units int) *LSTM {
	return &LSTM{Units: units}
}

// Kind returns the layer type shown in summaries.
func (l *LSTM) Kind() string { return "LSTM" }

// Params returns the trainable weights.
func (l *LSTM) Params() []*Param { return []*Param{l.kernel, l.recurrent, l.bias} }

// Build allocates the kernels with a unit forget bias.
func (l *LSTM) Build(in Shape, rng *rand.Rand) (Shape, error) {
	if l.Units <= 0 {
		return Shape{}, fmt.Errorf("lstm: units must be > 0")
	}
	if !in.IsSequence() {
		return Shape{}, fmt.Errorf("lstm: expects a sequence, got %s", in)
	}
	l.in = in.Features
	l.steps = in.Steps
	g := 4 * l.Units
	l.kernel = newParam("kernel", l.in, g)
	l.recurrent = newParam("recurrent_kernel", l.Units, g)
	l.bias = newParam("bias", g)
	glorotUniform(rng, l.kernel.Data, l.in, g)
	orthogonal(rng, l.recurrent.Data, l.Units, g)
	// Unit forget bias.
	for j := l.Units; j < 2*l.Units; j++ {
		l.bias.Data[j] = 1
	}
	return Shape{Features: l.Units}, nil
}

type lstmCache struct {
	x *Tensor
	// Per step, Units wide: gate activations, cell state and its tanh, hidden state.
	i, f, g, o, c, tc, h [][]float64
}

// Forward runs the recurrence and returns the last hidden state.
func (l *LSTM) Forward(x *Tensor, _ *Pass) (*Tensor, any) {
	u := l.Units
	g4 := 4 * u
	T := x.Steps
	cache := &lstmCache{
		x: x,
		i: make([][]float64, T), f: make([][]float64, T), g: make([][]float64, T),
		o: make([][]float64, T), c: make([][]float64, T), tc: make([][]float64, T),
		h: make([][]float64, T),
	}
	hPrev := make([]float64, u)
	cPrev := make([]float64, u)
	z := make([]float64, g4)

	for t := 0; t < T; t++ {
		copy(z, l.bias.Data)
		for d, xv := range x.Row(t) {
			if xv == 0 {
				continue
			}
			row := l.kernel.Data[d*g4 : (d+1)*g4]
			for k, w := range row {
				z[k] += xv * w
			}
		}
		for j, hv := range hPrev {
			if hv == 0 {
				continue
			}
			row := l.recurrent.Data[j*g4 : (j+1)*g4]
			for k, w := range row {
				z[k] += hv * w
			}
		}

		ig := make([]float64, u)
		fg := make([]float64, u)
		gg := make([]float64, u)
		og := make([]float64, u)
		c := make([]float64, u)
		tc := make([]float64, u)
		h := make([]float64, u)
		for j := 0; j < u; j++ {
			ig[j] = sigmoid(z[j])
			fg[j] = sigmoid(z[u+j])
			gg[j] = math.Tanh(z[2*u+j])
			og[j] = sigmoid(z[3*u+j])
			c[j] = fg[j]*cPrev[j] + ig[j]*gg[j]
			tc[j] = math.Tanh(c[j])
			h[j] = og[j] * tc[j]
		}
		cache.i[t], cache.f[t], cache.g[t], cache.o[t] = ig, fg, gg, og
		cache.c[t], cache.tc[t], cache.h[t] = c, tc, h
		hPrev, cPrev = h, c
	}

	out := NewTensor(Shape{Features: u})
	if T > 0 {
		copy(out.Data, cache.h[T-1])
	}
	return out, cache
}

// Backward runs backpropagation through time over the whole sequence.
func (l *LSTM) Backward(dy *Tensor, cache any, grads Gradients) *Tensor {
	lc := cache.(*lstmCache)
	u := l.Units
	g4 := 4 * u
	T := lc.x.Steps
	gk := grads[l.kernel]
	gr := grads[l.recurrent]
	gb := grads[l.bias]

	dx := NewTensor(lc.x.Shape)
	dhNext := make([]float64, u)
	dcNext := make([]float64, u)
	dh := make([]float64, u)
	dz := make([]float64, g4)
	zeros := make([]float64, u)

	for t := T - 1; t >= 0; t-- {
		copy(dh, dhNext)
		if t == T-1 {
			for j, v := range dy.Data {
				dh[j] += v
			}
		}

		cPrev, hPrev := zeros, zeros
		if t > 0 {
			cPrev, hPrev = lc.c[t-1], lc.h[t-1]
		}
		ig, fg, gg, og, tc := lc.i[t], lc.f[t], lc.g[t], lc.o[t], lc.tc[t]
		for j := 0; j < u; j++ {
			dc := dcNext[j] + dh[j]*og[j]*(1-tc[j]*tc[j])
			dz[j] = dc * gg[j] * ig[j] * (1 - ig[j])
			dz[u+j] = dc * cPrev[j] * fg[j] * (1 - fg[j])
			dz[2*u+j] = dc * ig[j] * (1 - gg[j]*gg[j])
			dz[3*u+j] = dh[j] * tc[j] * og[j] * (1 - og[j])
			dcNext[j] = dc * fg[j]
		}

		for k, v := range dz {
			gb[k] += v
		}
		xs := lc.x.Row(t)
		dxs := dx.Row(t)
		for d, xv := range xs {
			row := l.kernel.Data[d*g4 : (d+1)*g4]
			grow := gk[d*g4 : (d+1)*g4]
			s := 0.0
			for k, v := range dz {
				grow[k] += xv * v
				s += row[k] * v
			}
			dxs[d] = s
		}
		for j := 0; j < u; j++ {
			row := l.recurrent.Data[j*g4 : (j+1)*g4]
			grow := gr[j*g4 : (j+1)*g4]
			hv := hPrev[j]
			s := 0.0
			for k, v := range dz {
				grow[k] += hv * v
				s += row[k] * v
			}
			dhNext[j] = s
		}
	}
	return dx
}
