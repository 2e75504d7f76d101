package trainer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentiforge/internal/dataset"
	"sentiforge/internal/model"
)

// recordingModel predicts label 1 for every input and remembers the batches
// it was given.
type recordingModel struct {
	trainBatches []model.Batch
	evalBatches  int
	failAt       int
}

func (r *recordingModel) TrainStep(b model.Batch) (model.StepResult, error) {
	r.trainBatches = append(r.trainBatches, b)
	if r.failAt > 0 && len(r.trainBatches) == r.failAt {
		return model.StepResult{}, errors.New("boom")
	}
	return r.score(b), nil
}

func (r *recordingModel) EvaluateBatch(b model.Batch) (model.StepResult, error) {
	r.evalBatches++
	return r.score(b), nil
}

func (r *recordingModel) score(b model.Batch) model.StepResult {
	res := model.StepResult{Loss: 0.5, Count: len(b.Labels)}
	for _, l := range b.Labels {
		res.Correct += l
	}
	return res
}

// markerExamples labels a sequence positive when it contains token 3 and
// negative when it contains token 4.
func markerExamples(n int) []dataset.Example {
	out := make([]dataset.Example, n)
	for i := range out {
		label := i % 2
		marker := 4
		if label == 1 {
			marker = 3
		}
		tokens := []int{dataset.StartID}
		for j := 0; j < i%3; j++ {
			tokens = append(tokens, 5+j)
		}
		out[i] = dataset.Example{Tokens: append(tokens, marker), Label: label}
	}
	return out
}

func TestFitVisitsEveryExampleEachEpoch(t *testing.T) {
	train := markerExamples(10)
	m := &recordingModel{}
	hist, err := Fit(context.Background(), m, train, train[:4], FitConfig{
		Epochs:     2,
		BatchSize:  4,
		MaxLen:     6,
		NumWorkers: 2,
		Seed:       1,
	})
	require.NoError(t, err)
	require.Len(t, hist.Epochs, 2)
	require.Len(t, m.trainBatches, 6)
	assert.Equal(t, 2, m.evalBatches)

	sizes := []int{}
	for _, b := range m.trainBatches[:3] {
		sizes = append(sizes, len(b.Inputs))
		for _, in := range b.Inputs {
			assert.Len(t, in, 6)
		}
	}
	assert.Equal(t, []int{4, 4, 2}, sizes)

	for _, e := range hist.Epochs {
		assert.InDelta(t, 0.5, e.Loss, 1e-12)
		assert.InDelta(t, 0.5, e.Acc, 1e-12)
		assert.True(t, e.HasVal)
		assert.InDelta(t, 0.5, e.ValAcc, 1e-12)
	}
}

func TestFitReshufflesPerEpoch(t *testing.T) {
	train := markerExamples(32)
	m := &recordingModel{}
	_, err := Fit(context.Background(), m, train, nil, FitConfig{Epochs: 2, BatchSize: 32, MaxLen: 6, Seed: 3})
	require.NoError(t, err)
	require.Len(t, m.trainBatches, 2)
	assert.NotEqual(t, m.trainBatches[0].Inputs, m.trainBatches[1].Inputs)
	assert.ElementsMatch(t, m.trainBatches[0].Labels, m.trainBatches[1].Labels)
}

func TestFitPropagatesStepErrors(t *testing.T) {
	m := &recordingModel{failAt: 2}
	hist, err := Fit(context.Background(), m, markerExamples(10), nil, FitConfig{Epochs: 1, BatchSize: 4, MaxLen: 6})
	require.ErrorContains(t, err, "epoch 1 step 2: boom")
	assert.Empty(t, hist.Epochs)
}

func TestFitHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fit(ctx, &recordingModel{}, markerExamples(10), nil, FitConfig{Epochs: 1, BatchSize: 2, MaxLen: 6})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFitRejectsBadConfig(t *testing.T) {
	_, err := Fit(context.Background(), &recordingModel{}, markerExamples(2), nil, FitConfig{BatchSize: 2, MaxLen: 4})
	require.ErrorContains(t, err, "epochs")
	_, err = Fit(context.Background(), &recordingModel{}, nil, nil, FitConfig{Epochs: 1, BatchSize: 2, MaxLen: 4})
	require.ErrorContains(t, err, "no training examples")
}

func TestEvaluate(t *testing.T) {
	m := &recordingModel{}
	loss, acc, err := Evaluate(context.Background(), m, markerExamples(9), EvalConfig{BatchSize: 4, MaxLen: 6})
	require.NoError(t, err)
	assert.Equal(t, 3, m.evalBatches)
	assert.InDelta(t, 0.5, loss, 1e-12)
	assert.InDelta(t, 4.0/9.0, acc, 1e-12)

	_, _, err = Evaluate(context.Background(), m, nil, EvalConfig{BatchSize: 4, MaxLen: 6})
	require.Error(t, err)
}

func TestRunTrainsEveryVariant(t *testing.T) {
	data := &dataset.Dataset{Train: markerExamples(24), Test: markerExamples(8)}
	var out bytes.Buffer
	results, err := Run(context.Background(), RunConfig{
		Data: data,
		Hyper: model.Hyper{
			VocabSize:    8,
			MaxLen:       6,
			EmbeddingDim: 4,
			LSTMUnits:    4,
			Filters:      2,
			KernelSize:   3,
			PoolSize:     2,
			Dropout:      0.2,
		},
		Variants:      []string{model.VariantLSTM, model.VariantLSTMDropout, model.VariantCNNLSTM},
		Epochs:        1,
		BatchSize:     8,
		LearningRate:  0.01,
		Seed:          7,
		NumWorkers:    2,
		EvalEachEpoch: true,
		Out:           &out,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	text := out.String()
	assert.Equal(t, 3, strings.Count(text, "Accuracy: "))
	assert.Equal(t, 3, strings.Count(text, "Total params: "))
	assert.Contains(t, text, "BEST EPOCH")
	for _, r := range results {
		assert.NotEmpty(t, r.RunID)
		assert.Positive(t, r.Params)
		assert.GreaterOrEqual(t, r.Accuracy, 0.0)
		assert.LessOrEqual(t, r.Accuracy, 1.0)
		require.Len(t, r.History.Epochs, 1)
		assert.Equal(t, 1, r.Best.Epoch)
	}
	assert.NotEqual(t, results[0].RunID, results[1].RunID)
}

func TestRunStopsOnUnknownVariant(t *testing.T) {
	data := &dataset.Dataset{Train: markerExamples(4), Test: markerExamples(2)}
	_, err := Run(context.Background(), RunConfig{
		Data:      data,
		Hyper:     model.Hyper{VocabSize: 8, MaxLen: 6, EmbeddingDim: 2, LSTMUnits: 2},
		Variants:  []string{"gru"},
		Epochs:    1,
		BatchSize: 2,
	})
	require.ErrorContains(t, err, "gru")
}

func TestRunSelectsOptimizer(t *testing.T) {
	data := &dataset.Dataset{Train: markerExamples(8), Test: markerExamples(4)}
	cfg := RunConfig{
		Data:      data,
		Hyper:     model.Hyper{VocabSize: 8, MaxLen: 6, EmbeddingDim: 2, LSTMUnits: 2},
		Variants:  []string{model.VariantLSTM},
		Epochs:    2,
		BatchSize: 4,
		Optimizer: model.OptimizerSGD,
	}
	results, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].History.Epochs, 2)
	assert.Contains(t, []int{1, 2}, results[0].Best.Epoch)

	cfg.Optimizer = "rmsprop"
	_, err = Run(context.Background(), cfg)
	require.ErrorContains(t, err, "unknown optimizer")
}
