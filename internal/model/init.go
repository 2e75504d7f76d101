package model

import (
	"math"
	"math/rand"
)

// glorotUniform fills data from U(-limit, limit), limit = sqrt(6/(fanIn+fanOut)).
func glorotUniform(rng *rand.Rand, data []float64, fanIn, fanOut int) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	uniform(rng, data, -limit, limit)
}

func uniform(rng *rand.Rand, data []float64, lo, hi float64) {
	for i := range data {
		data[i] = lo + rng.Float64()*(hi-lo)
	}
}

// orthogonal fills a rows x cols matrix whose rows (rows <= cols) or columns
// are orthonormal, using Gram-Schmidt over a Gaussian draw.
func orthogonal(rng *rand.Rand, data []float64, rows, cols int) {
	// Work on vectors of length n, k of them, with k <= n.
	n, k := cols, rows
	transposed := false
	if rows > cols {
		n, k = rows, cols
		transposed = true
	}
	vecs := make([][]float64, k)
	for i := range vecs {
		for {
			v := make([]float64, n)
			for j := range v {
				v[j] = rng.NormFloat64()
			}
			for _, u := range vecs[:i] {
				d := dot(u, v)
				for j := range v {
					v[j] -= d * u[j]
				}
			}
			norm := math.Sqrt(dot(v, v))
			if norm < 1e-10 {
				continue
			}
			for j := range v {
				v[j] /= norm
			}
			vecs[i] = v
			break
		}
	}
	for i, v := range vecs {
		for j, x := range v {
			if transposed {
				data[j*cols+i] = x
			} else {
				data[i*cols+j] = x
			}
		}
	}
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
