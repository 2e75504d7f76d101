package model

import (
	"math"
	"math/rand"
)

// Pass carries per-example forward state.
type Pass struct {
	Training bool
	RNG      *rand.Rand
}

// Layer is one stage of a sequential network. Forward returns the output and
// whatever the layer needs to run Backward for the same example; Backward
// accumulates parameter gradients into grads and returns the input gradient.
type Layer interface {
	Kind() string
	Build(in Shape, rng *rand.Rand) (Shape, error)
	Params() []*Param
	Forward(x *Tensor, pass *Pass) (*Tensor, any)
	Backward(dy *Tensor, cache any, grads Gradients) *Tensor
}

// Activation names.
const (
	Linear  = "linear"
	ReLU    = "relu"
	Sigmoid = "sigmoid"
	Tanh    = "tanh"
)

func validActivation(name string) bool {
	switch name {
	case Linear, ReLU, Sigmoid, Tanh:
		return true
	}
	return false
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func activate(name string, z float64) float64 {
	switch name {
	case ReLU:
		if z > 0 {
			return z
		}
		return 0
	case Sigmoid:
		return sigmoid(z)
	case Tanh:
		return math.Tanh(z)
	}
	return z
}

// activationGrad returns dy/dz given the activation output y.
func activationGrad(name string, y float64) float64 {
	switch name {
	case ReLU:
		if y > 0 {
			return 1
		}
		return 0
	case Sigmoid:
		return y * (1 - y)
	case Tanh:
		return 1 - y*y
	}
	return 1
}
