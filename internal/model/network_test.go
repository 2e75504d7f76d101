package model

import (
	"bytes"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileDefault(t *testing.T, n *Network, lr float64) {
	t.Helper()
	require.NoError(t, n.Compile(CompileOptions{
		Loss:         LossBinaryCrossentropy,
		Optimizer:    OptimizerAdam,
		Metrics:      []string{MetricAccuracy},
		LearningRate: lr,
	}))
}

func TestVariantParamCounts(t *testing.T) {
	h := DefaultHyper()
	tests := []struct {
		variant string
		params  int
		layers  int
		summary string
	}{
		{VariantLSTM, 213301, 3, "Total params: 213,301"},
		{VariantLSTMDropout, 213301, 5, "dropout_1 (Dropout)"},
		{VariantCNNLSTM, 216405, 5, "max_pooling1d (MaxPooling1D) (None, 250, 32)"},
	}
	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			net, err := Build(tt.variant, h, 7)
			require.NoError(t, err)
			assert.Equal(t, tt.params, net.CountParams())
			assert.Len(t, net.Layers(), tt.layers)
			assert.Equal(t, Shape{Features: 1}, net.OutputShape())

			var buf bytes.Buffer
			net.Summary(&buf)
			assert.Contains(t, buf.String(), tt.summary)
			assert.Contains(t, buf.String(), "embedding (Embedding)")
		})
	}

	_, err := Build("gru", h, 7)
	assert.ErrorContains(t, err, "unknown variant")
}

func TestBuildIsSeeded(t *testing.T) {
	h := Hyper{VocabSize: 20, MaxLen: 6, EmbeddingDim: 3, LSTMUnits: 4, Filters: 2, KernelSize: 3, PoolSize: 2}
	a, err := Build(VariantCNNLSTM, h, 3)
	require.NoError(t, err)
	b, err := Build(VariantCNNLSTM, h, 3)
	require.NoError(t, err)
	c, err := Build(VariantCNNLSTM, h, 4)
	require.NoError(t, err)
	for i, p := range a.Params() {
		assert.Equal(t, p.Data, b.Params()[i].Data)
	}
	assert.NotEqual(t, a.Params()[0].Data, c.Params()[0].Data)
}

func TestCompileValidation(t *testing.T) {
	h := Hyper{VocabSize: 10, MaxLen: 4, EmbeddingDim: 2, LSTMUnits: 2}
	net, err := Build(VariantLSTM, h, 1)
	require.NoError(t, err)

	assert.ErrorContains(t, net.Compile(CompileOptions{Loss: "mse", Optimizer: OptimizerAdam}), "loss")
	assert.ErrorContains(t, net.Compile(CompileOptions{Loss: LossBinaryCrossentropy, Optimizer: "rmsprop"}), "optimizer")
	assert.ErrorContains(t, net.Compile(CompileOptions{Loss: LossBinaryCrossentropy, Optimizer: OptimizerAdam, Metrics: []string{"auc"}}), "metric")

	noHead := NewNetwork("x", 4, 1)
	require.NoError(t, noHead.Add(NewEmbedding(10, 2), NewLSTM(2), NewDense(2, Linear)))
	assert.ErrorContains(t, noHead.Compile(CompileOptions{Loss: LossBinaryCrossentropy, Optimizer: OptimizerAdam}), "Dense(1, sigmoid)")

	_, err = net.TrainStep(Batch{Inputs: [][]int{{1, 2, 3, 4}}, Labels: []int{1}})
	assert.ErrorIs(t, err, ErrNotCompiled)
}

func TestAddRequiresEmbeddingFirst(t *testing.T) {
	n := NewNetwork("x", 4, 1)
	assert.ErrorContains(t, n.Add(NewLSTM(2)), "first layer")
}

func TestBatchValidation(t *testing.T) {
	h := Hyper{VocabSize: 10, MaxLen: 4, EmbeddingDim: 2, LSTMUnits: 2}
	net, err := Build(VariantLSTM, h, 1)
	require.NoError(t, err)
	compileDefault(t, net, 0)

	tests := []struct {
		name  string
		batch Batch
		want  string
	}{
		{"empty", Batch{}, "empty batch"},
		{"label count", Batch{Inputs: [][]int{{0, 0, 1, 2}}, Labels: []int{1, 0}}, "labels"},
		{"length", Batch{Inputs: [][]int{{1, 2}}, Labels: []int{1}}, "length 2"},
		{"vocab", Batch{Inputs: [][]int{{0, 0, 1, 10}}, Labels: []int{1}}, "token id 10"},
		{"label", Batch{Inputs: [][]int{{0, 0, 1, 2}}, Labels: []int{2}}, "not binary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := net.TrainStep(tt.batch)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNetworkGradients(t *testing.T) {
	h := Hyper{VocabSize: 8, MaxLen: 6, EmbeddingDim: 3, LSTMUnits: 3, Filters: 2, KernelSize: 3, PoolSize: 2, Dropout: 0.3}
	for _, variant := range []string{VariantLSTM, VariantLSTMDropout, VariantCNNLSTM} {
		t.Run(variant, func(t *testing.T) {
			net, err := Build(variant, h, 5)
			require.NoError(t, err)
			ids := []int{0, 1, 4, 7, 2, 5}
			label := 1
			newPass := func() *Pass { return &Pass{Training: true, RNG: rand.New(rand.NewSource(21))} }
			lossAt := func() float64 {
				_, logit, _ := net.forward(ids, newPass())
				l, _ := binaryCrossentropyLogit(logit, label)
				return l
			}

			_, logit, caches := net.forward(ids, newPass())
			_, dLogit := binaryCrossentropyLogit(logit, label)
			grads := NewGradients(net.Params())
			net.backward(dLogit, caches, grads)

			const eps = 1e-6
			for _, p := range net.Params() {
				for i := range p.Data {
					orig := p.Data[i]
					p.Data[i] = orig + eps
					up := lossAt()
					p.Data[i] = orig - eps
					down := lossAt()
					p.Data[i] = orig
					numeric := (up - down) / (2 * eps)
					require.InDeltaf(t, numeric, grads[p][i], 1e-6+1e-4*math.Abs(numeric), "%s[%d]", p.Name, i)
				}
			}
		})
	}
}

// toyBatch labels a sequence positive when it contains token 3 and negative
// when it contains token 4.
func toyBatch(rng *rand.Rand, n, maxLen int) Batch {
	b := Batch{Inputs: make([][]int, n), Labels: make([]int, n)}
	for i := 0; i < n; i++ {
		seq := make([]int, maxLen)
		for j := range seq {
			seq[j] = 5 + rng.Intn(3)
		}
		label := i % 2
		marker := 4
		if label == 1 {
			marker = 3
		}
		seq[rng.Intn(maxLen)] = marker
		b.Inputs[i] = seq
		b.Labels[i] = label
	}
	return b
}

func TestTrainStepLearnsToyTask(t *testing.T) {
	h := Hyper{VocabSize: 8, MaxLen: 6, EmbeddingDim: 4, LSTMUnits: 6, Filters: 4, KernelSize: 3, PoolSize: 2, Dropout: 0.1}
	for _, variant := range []string{VariantLSTM, VariantLSTMDropout, VariantCNNLSTM} {
		t.Run(variant, func(t *testing.T) {
			net, err := Build(variant, h, 7)
			require.NoError(t, err)
			net.SetWorkers(3)
			compileDefault(t, net, 0.05)

			rng := rand.New(rand.NewSource(1))
			eval := toyBatch(rng, 40, h.MaxLen)
			before, err := net.EvaluateBatch(eval)
			require.NoError(t, err)

			for step := 0; step < 200; step++ {
				_, err := net.TrainStep(toyBatch(rng, 16, h.MaxLen))
				require.NoError(t, err)
			}

			after, err := net.EvaluateBatch(eval)
			require.NoError(t, err)
			assert.Less(t, after.Loss, before.Loss*0.5)
			assert.GreaterOrEqual(t, after.Accuracy(), 0.9)

			probs, err := net.Predict(eval.Inputs)
			require.NoError(t, err)
			for _, p := range probs {
				assert.True(t, p >= 0 && p <= 1)
			}
		})
	}
}

func TestTrainStepIndependentOfWorkerCount(t *testing.T) {
	h := Hyper{VocabSize: 8, MaxLen: 5, EmbeddingDim: 3, LSTMUnits: 3, Dropout: 0.2}
	batch := toyBatch(rand.New(rand.NewSource(2)), 9, h.MaxLen)

	run := func(workers int) []*Param {
		net, err := Build(VariantLSTMDropout, h, 3)
		require.NoError(t, err)
		net.SetWorkers(workers)
		compileDefault(t, net, 0.01)
		for i := 0; i < 3; i++ {
			_, err := net.TrainStep(batch)
			require.NoError(t, err)
		}
		return net.Params()
	}
	a, b := run(1), run(4)
	for i := range a {
		assert.InDeltaSlice(t, a[i].Data, b[i].Data, 1e-9)
	}
}

func TestStepResultAccuracy(t *testing.T) {
	assert.Zero(t, StepResult{}.Accuracy())
	assert.InDelta(t, 0.75, StepResult{Correct: 3, Count: 4}.Accuracy(), 1e-12)
}

func TestThousands(t *testing.T) {
	assert.Equal(t, "101", thousands(101))
	assert.Equal(t, "3,104", thousands(3104))
	assert.Equal(t, "213,301", thousands(213301))
	assert.Equal(t, "1,216,405", thousands(1216405))
}

func TestChunks(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 3}, {3, 6}, {6, 7}}, chunks(7, 3))
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, chunks(2, 8))
}

func TestSummaryLayout(t *testing.T) {
	net, err := Build(VariantLSTM, Hyper{VocabSize: 10, MaxLen: 4, EmbeddingDim: 2, LSTMUnits: 3}, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	net.Summary(&buf)
	want := strings.Join([]string{
		`Model: "lstm"`,
		"_________________________________________________________________",
		"Layer (type)                 Output Shape              Param #",
		"=================================================================",
		"embedding (Embedding)        (None, 4, 2)              20",
		"_________________________________________________________________",
		"lstm (LSTM)                  (None, 3)                 72",
		"_________________________________________________________________",
		"dense (Dense)                (None, 1)                 4",
		"=================================================================",
		"Total params: 96",
		"Trainable params: 96",
		"Non-trainable params: 0",
		"_________________________________________________________________",
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())
}
