package model

import (
	"fmt"
	"math/rand"
)

// Padding modes for Conv1D.
const (
	PaddingSame  = "same"
	PaddingValid = "valid"
)

// Conv1D slides Filters kernels of width KernelSize along the time axis.
type Conv1D struct {
	Filters    int
	KernelSize int
	Padding    string
	Activation string

	in      int
	steps   int
	outLen  int
	padLeft int
	kernel  *Param // [KernelSize][in][Filters]
	bias    *Param
}

// NewConv1D returns a stride-1 temporal convolution.
func NewConv1D(filters, kernelSize int, padding, activation string) *Conv1D {
	if padding == "" {
		padding = PaddingValid
	}
	if activation == "" {
		activation = Linear
	}
	return &Conv1D{Filters: filters, KernelSize: kernelSize, Padding: padding, Activation: activation}
}

// Kind returns the layer type shown in summaries.
func (c *Conv1D) Kind() string { return "Conv1D" }

// Params returns the trainable weights.
func (c *Conv1D) Params() []*Param { return []*Param{c.kernel, c.bias} }

// Build allocates the kernel and computes the output length for the padding mode.
func (c *Conv1D) Build(in Shape, rng *rand.Rand) (Shape, error) {
	if c.Filters <= 0 || c.KernelSize <= 0 {
		return Shape{}, fmt.Errorf("conv1d: filters and kernel size must be > 0")
	}
	if !in.IsSequence() {
		return Shape{}, fmt.Errorf("conv1d: expects a sequence, got %s", in)
	}
	if !validActivation(c.Activation) {
		return Shape{}, fmt.Errorf("conv1d: unknown activation %q", c.Activation)
	}
	c.in = in.Features
	c.steps = in.Steps
	switch c.Padding {
	case PaddingSame:
		c.outLen = in.Steps
		c.padLeft = (c.KernelSize - 1) / 2
	case PaddingValid:
		c.outLen = in.Steps - c.KernelSize + 1
		c.padLeft = 0
	default:
		return Shape{}, fmt.Errorf("conv1d: unknown padding %q", c.Padding)
	}
	if c.outLen <= 0 {
		return Shape{}, fmt.Errorf("conv1d: kernel %d longer than sequence %d", c.KernelSize, in.Steps)
	}
	c.kernel = newParam("kernel", c.KernelSize, c.in, c.Filters)
	c.bias = newParam("bias", c.Filters)
	glorotUniform(rng, c.kernel.Data, c.KernelSize*c.in, c.KernelSize*c.Filters)
	return Shape{Steps: c.outLen, Features: c.Filters}, nil
}

type convCache struct {
	x *Tensor
	y *Tensor
}

// Forward slides the kernel over the steps.
func (c *Conv1D) Forward(x *Tensor, _ *Pass) (*Tensor, any) {
	out := NewTensor(Shape{Steps: c.outLen, Features: c.Filters})
	for t := 0; t < c.outLen; t++ {
		z := out.Row(t)
		copy(z, c.bias.Data)
		for k := 0; k < c.KernelSize; k++ {
			src := t + k - c.padLeft
			if src < 0 || src >= c.steps {
				continue
			}
			xs := x.Row(src)
			for ch, xv := range xs {
				if xv == 0 {
					continue
				}
				w := c.kernel.Data[(k*c.in+ch)*c.Filters : (k*c.in+ch+1)*c.Filters]
				for f, wv := range w {
					z[f] += xv * wv
				}
			}
		}
		for f, v := range z {
			z[f] = activate(c.Activation, v)
		}
	}
	return out, &convCache{x: x, y: out}
}

// Backward accumulates kernel and bias gradients and returns the input gradient.
func (c *Conv1D) Backward(dy *Tensor, cache any, grads Gradients) *Tensor {
	cc := cache.(*convCache)
	gk := grads[c.kernel]
	gb := grads[c.bias]
	dx := NewTensor(cc.x.Shape)
	dz := make([]float64, c.Filters)
	for t := 0; t < c.outLen; t++ {
		yrow := cc.y.Row(t)
		for f, g := range dy.Row(t) {
			dz[f] = g * activationGrad(c.Activation, yrow[f])
			gb[f] += dz[f]
		}
		for k := 0; k < c.KernelSize; k++ {
			src := t + k - c.padLeft
			if src < 0 || src >= c.steps {
				continue
			}
			xs := cc.x.Row(src)
			dxs := dx.Row(src)
			for ch, xv := range xs {
				off := (k*c.in + ch) * c.Filters
				w := c.kernel.Data[off : off+c.Filters]
				gw := gk[off : off+c.Filters]
				s := 0.0
				for f, g := range dz {
					gw[f] += xv * g
					s += w[f] * g
				}
				dxs[ch] += s
			}
		}
	}
	return dx
}
