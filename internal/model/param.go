package model

// Param is a named trainable weight tensor.
type Param struct {
	Name string
	Dims []int
	Data []float64
}

func newParam(name string, dims ...int) *Param {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return &Param{Name: name, Dims: dims, Data: make([]float64, n)}
}

// Gradients accumulates parameter gradients for one worker.
type Gradients map[*Param][]float64

// NewGradients allocates zeroed buffers for params.
func NewGradients(params []*Param) Gradients {
	g := make(Gradients, len(params))
	for _, p := range params {
		g[p] = make([]float64, len(p.Data))
	}
	return g
}

// Zero resets every buffer.
func (g Gradients) Zero() {
	for _, buf := range g {
		for i := range buf {
			buf[i] = 0
		}
	}
}

// Add accumulates other into g.
func (g Gradients) Add(other Gradients) {
	for p, src := range other {
		dst := g[p]
		for i, v := range src {
			dst[i] += v
		}
	}
}

// Scale multiplies every gradient by s.
func (g Gradients) Scale(s float64) {
	for _, buf := range g {
		for i := range buf {
			buf[i] *= s
		}
	}
}
