package model

import (
	"fmt"
	"math"
)

// Optimizer names accepted by Compile.
const (
	OptimizerAdam = "adam"
	OptimizerSGD  = "sgd"
)

// Optimizer applies averaged gradients to parameters.
type Optimizer interface {
	Name() string
	Step(params []*Param, grads Gradients)
}

// NewOptimizer returns the optimizer registered under name.
func NewOptimizer(name string, lr float64) (Optimizer, error) {
	switch name {
	case OptimizerAdam:
		return NewAdam(AdamConfig{LR: lr}), nil
	case OptimizerSGD:
		if lr <= 0 {
			lr = 0.01
		}
		return &SGD{LR: lr}, nil
	default:
		return nil, fmt.Errorf("model: unknown optimizer %q", name)
	}
}

// AdamConfig holds configuration for Adam.
type AdamConfig struct {
	LR    float64    // default 0.001
	Betas [2]float64 // default 0.9, 0.999
	Eps   float64    // default 1e-7
}

// Adam implements adaptive moment estimation with bias correction.
//
//	m = b1*m + (1-b1)*g
//	v = b2*v + (1-b2)*g^2
//	p -= lr * (m/(1-b1^t)) / (sqrt(v/(1-b2^t)) + eps)
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int
	m     map[*Param][]float64
	v     map[*Param][]float64
}

// NewAdam creates an Adam optimizer, filling unset fields with defaults.
func NewAdam(cfg AdamConfig) *Adam {
	if cfg.LR == 0 {
		cfg.LR = 0.001
	}
	if cfg.Betas[0] == 0 {
		cfg.Betas[0] = 0.9
	}
	if cfg.Betas[1] == 0 {
		cfg.Betas[1] = 0.999
	}
	if cfg.Eps == 0 {
		cfg.Eps = 1e-7
	}
	return &Adam{
		lr:    cfg.LR,
		beta1: cfg.Betas[0],
		beta2: cfg.Betas[1],
		eps:   cfg.Eps,
		m:     make(map[*Param][]float64),
		v:     make(map[*Param][]float64),
	}
}

func (a *Adam) Name() string { return OptimizerAdam }

// Step performs a single update. Parameters without a gradient buffer are skipped.
func (a *Adam) Step(params []*Param, grads Gradients) {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	for _, p := range params {
		g, ok := grads[p]
		if !ok {
			continue
		}
		m, ok := a.m[p]
		if !ok {
			m = make([]float64, len(p.Data))
			a.m[p] = m
		}
		v, ok := a.v[p]
		if !ok {
			v = make([]float64, len(p.Data))
			a.v[p] = v
		}
		for i, gi := range g {
			m[i] = a.beta1*m[i] + (1-a.beta1)*gi
			v[i] = a.beta2*v[i] + (1-a.beta2)*gi*gi
			mHat := m[i] / bc1
			vHat := v[i] / bc2
			p.Data[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}

// SGD is plain gradient descent.
type SGD struct {
	LR float64
}

func (s *SGD) Name() string { return OptimizerSGD }

func (s *SGD) Step(params []*Param, grads Gradients) {
	for _, p := range params {
		g, ok := grads[p]
		if !ok {
			continue
		}
		for i, gi := range g {
			p.Data[i] -= s.LR * gi
		}
	}
}

// clipGlobalNorm rescales grads so their joint L2 norm is at most maxNorm and
// returns the norm before clipping.
func clipGlobalNorm(grads Gradients, maxNorm float64) float64 {
	sum := 0.0
	for _, buf := range grads {
		for _, v := range buf {
			sum += v * v
		}
	}
	norm := math.Sqrt(sum)
	if maxNorm > 0 && norm > maxNorm {
		grads.Scale(maxNorm / norm)
	}
	return norm
}
