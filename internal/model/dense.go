package model

import (
	"fmt"
	"math/rand"
)

// Dense is a fully-connected layer over a flat input.
type Dense struct {
	Units      int
	Activation string

	in     int
	kernel *Param
	bias   *Param
}

// NewDense returns a fully-connected layer.
func NewDense(units int, activation string) *Dense {
	if activation == "" {
		activation = Linear
	}
	return &Dense{Units: units, Activation: activation}
}

// Kind returns the layer type shown in summaries.
func (d *Dense) Kind() string { return "Dense" }

// Params returns the trainable weights.
func (d *Dense) Params() []*Param { return []*Param{d.kernel, d.bias} }

// Build allocates the kernel for a flat input.
func (d *Dense) Build(in Shape, rng *rand.Rand) (Shape, error) {
	if d.Units <= 0 {
		return Shape{}, fmt.Errorf("dense: units must be > 0")
	}
	if !validActivation(d.Activation) {
		return Shape{}, fmt.Errorf("dense: unknown activation %q", d.Activation)
	}
	if in.IsSequence() {
		return Shape{}, fmt.Errorf("dense: expects a flat input, got %s", in)
	}
	d.in = in.Features
	d.kernel = newParam("kernel", d.in, d.Units)
	d.bias = newParam("bias", d.Units)
	glorotUniform(rng, d.kernel.Data, d.in, d.Units)
	return Shape{Features: d.Units}, nil
}

type denseCache struct {
	x      *Tensor
	logits []float64
	y      []float64
}

// Forward computes activation(x.kernel + bias).
func (d *Dense) Forward(x *Tensor, _ *Pass) (*Tensor, any) {
	z := make([]float64, d.Units)
	copy(z, d.bias.Data)
	for i, xv := range x.Data {
		if xv == 0 {
			continue
		}
		row := d.kernel.Data[i*d.Units : (i+1)*d.Units]
		for j, w := range row {
			z[j] += xv * w
		}
	}
	out := NewTensor(Shape{Features: d.Units})
	for j, v := range z {
		out.Data[j] = activate(d.Activation, v)
	}
	return out, &denseCache{x: x, logits: z, y: out.Data}
}

// Backward propagates dy through the activation and the kernel.
func (d *Dense) Backward(dy *Tensor, cache any, grads Gradients) *Tensor {
	c := cache.(*denseCache)
	dz := make([]float64, d.Units)
	for j, g := range dy.Data {
		dz[j] = g * activationGrad(d.Activation, c.y[j])
	}
	return d.backwardLogits(dz, c, grads)
}

// backwardLogits propagates a gradient taken with respect to the pre-activation.
func (d *Dense) backwardLogits(dz []float64, c *denseCache, grads Gradients) *Tensor {
	gk := grads[d.kernel]
	gb := grads[d.bias]
	dx := NewTensor(c.x.Shape)
	for j, g := range dz {
		gb[j] += g
	}
	for i, xv := range c.x.Data {
		row := d.kernel.Data[i*d.Units : (i+1)*d.Units]
		grow := gk[i*d.Units : (i+1)*d.Units]
		s := 0.0
		for j, g := range dz {
			grow[j] += xv * g
			s += row[j] * g
		}
		dx.Data[i] = s
	}
	return dx
}
