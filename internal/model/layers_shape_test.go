package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayerShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	seq := Shape{Steps: 500, Features: 32}

	out, err := NewConv1D(32, 3, PaddingSame, ReLU).Build(seq, rng)
	require.NoError(t, err)
	assert.Equal(t, Shape{Steps: 500, Features: 32}, out)

	out, err = NewConv1D(8, 3, PaddingValid, ReLU).Build(seq, rng)
	require.NoError(t, err)
	assert.Equal(t, Shape{Steps: 498, Features: 8}, out)

	out, err = NewMaxPool1D(2).Build(seq, rng)
	require.NoError(t, err)
	assert.Equal(t, Shape{Steps: 250, Features: 32}, out)

	out, err = NewMaxPool1D(3).Build(Shape{Steps: 7, Features: 1}, rng)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Steps)

	out, err = NewLSTM(100).Build(seq, rng)
	require.NoError(t, err)
	assert.Equal(t, Shape{Features: 100}, out)
	assert.Equal(t, "(None, 100)", out.String())
	assert.Equal(t, "(None, 500, 32)", seq.String())
}

func TestLayerBuildErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	flat := Shape{Features: 4}
	seq := Shape{Steps: 3, Features: 4}

	_, err := NewDense(1, Sigmoid).Build(seq, rng)
	assert.ErrorContains(t, err, "flat input")
	_, err = NewDense(1, "softmax").Build(flat, rng)
	assert.ErrorContains(t, err, "activation")
	_, err = NewLSTM(4).Build(flat, rng)
	assert.ErrorContains(t, err, "sequence")
	_, err = NewConv1D(2, 5, PaddingValid, ReLU).Build(seq, rng)
	assert.ErrorContains(t, err, "longer than sequence")
	_, err = NewConv1D(2, 2, "causal", ReLU).Build(seq, rng)
	assert.ErrorContains(t, err, "padding")
	_, err = NewMaxPool1D(4).Build(seq, rng)
	assert.Error(t, err)
	_, err = NewDropout(1).Build(seq, rng)
	assert.Error(t, err)
	_, err = NewEmbedding(10, 2).Build(seq, rng)
	assert.ErrorContains(t, err, "token sequence")
}

func TestMaxPool1DForward(t *testing.T) {
	l := NewMaxPool1D(2)
	_, err := l.Build(Shape{Steps: 5, Features: 2}, nil)
	require.NoError(t, err)
	x := &Tensor{Shape: Shape{Steps: 5, Features: 2}, Data: []float64{
		1, 9,
		3, 2,
		-1, -5,
		-2, -4,
		7, 7,
	}}
	y, _ := l.Forward(x, noPass())
	// The trailing step does not fill a window and is dropped.
	assert.Equal(t, []float64{3, 9, -1, -4}, y.Data)
}

func TestDropoutInferenceIsIdentity(t *testing.T) {
	l := NewDropout(0.5)
	x := &Tensor{Shape: Shape{Features: 3}, Data: []float64{1, 2, 3}}
	y, cache := l.Forward(x, &Pass{Training: false})
	assert.Same(t, x, y)
	assert.Nil(t, cache)
}

func TestDropoutTrainingScales(t *testing.T) {
	l := NewDropout(0.25)
	x := NewTensor(Shape{Features: 20000})
	for i := range x.Data {
		x.Data[i] = 1
	}
	y, _ := l.Forward(x, &Pass{Training: true, RNG: rand.New(rand.NewSource(1))})
	zeros, sum := 0, 0.0
	for _, v := range y.Data {
		if v == 0 {
			zeros++
		} else {
			assert.InDelta(t, 1/0.75, v, 1e-12)
		}
		sum += v
	}
	assert.InDelta(t, 0.25, float64(zeros)/float64(len(y.Data)), 0.02)
	assert.InDelta(t, 1.0, sum/float64(len(y.Data)), 0.03)
}

func TestEmbeddingLookup(t *testing.T) {
	e := NewEmbedding(4, 2)
	_, err := e.Build(Shape{Steps: 3, Features: 1}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	copy(e.weight.Data, []float64{0, 0, 1, 1, 2, 2, 3, 3})
	y, _ := e.Forward(tokensTensor([]int{3, 0, 1}), noPass())
	assert.Equal(t, []float64{3, 3, 0, 0, 1, 1}, y.Data)
}

func TestInitializers(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	data := make([]float64, 1000)
	glorotUniform(rng, data, 10, 20)
	limit := math.Sqrt(6.0 / 30)
	for _, v := range data {
		assert.LessOrEqual(t, math.Abs(v), limit)
	}

	const rows, cols = 4, 16
	m := make([]float64, rows*cols)
	orthogonal(rng, m, rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < rows; j++ {
			d := dot(m[i*cols:(i+1)*cols], m[j*cols:(j+1)*cols])
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, d, 1e-9)
		}
	}
}
