package dataset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeExamples(n int) []Example {
	out := make([]Example, n)
	for i := range out {
		out[i] = Example{Tokens: []int{StartID, i + 3}, Label: i % 2}
	}
	return out
}

func collectBatches(t *testing.T, opts BatchOptions) []Batch {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, errCh, err := StartBatches(ctx, opts)
	require.NoError(t, err)

	var out []Batch
	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch, ok := <-stream:
			if !ok {
				require.NoError(t, <-errCh)
				return out
			}
			out = append(out, batch)
		case <-deadline:
			t.Fatal("timed out waiting for batches")
		}
	}
}

func TestStartBatchesOrderedAndPadded(t *testing.T) {
	examples := makeExamples(10)
	batches := collectBatches(t, BatchOptions{
		Examples:   examples,
		BatchSize:  4,
		MaxLen:     3,
		NumWorkers: 3,
	})
	require.Len(t, batches, NumBatches(10, 4))
	for i, b := range batches {
		assert.Equal(t, i, b.ID)
	}
	assert.Len(t, batches[2].Inputs, 2, "last batch is short")
	assert.Equal(t, []int{0, StartID, 3}, batches[0].Inputs[0])
	assert.Equal(t, []int{0, 1, 0, 1}, batches[0].Labels)
}

func TestStartBatchesShuffleDeterministic(t *testing.T) {
	opts := BatchOptions{
		Examples:   makeExamples(33),
		BatchSize:  5,
		MaxLen:     2,
		Shuffle:    true,
		Seed:       7,
		NumWorkers: 4,
	}
	run1 := collectBatches(t, opts)
	run2 := collectBatches(t, opts)
	assert.Equal(t, run1, run2)

	seen := make(map[int]bool)
	for _, b := range run1 {
		for _, in := range b.Inputs {
			seen[in[1]] = true
		}
	}
	assert.Len(t, seen, 33, "every example appears exactly once")

	opts.Seed = 8
	assert.NotEqual(t, run1, collectBatches(t, opts))
}

func TestStartBatchesRejectsBadLabel(t *testing.T) {
	examples := makeExamples(3)
	examples[1].Label = 4
	stream, errCh, err := StartBatches(context.Background(), BatchOptions{
		Examples:  examples,
		BatchSize: 1,
		MaxLen:    2,
	})
	require.NoError(t, err)
	for range stream {
	}
	require.ErrorContains(t, <-errCh, "label 4")
}

func TestStartBatchesValidation(t *testing.T) {
	_, _, err := StartBatches(context.Background(), BatchOptions{})
	require.Error(t, err)
	_, _, err = StartBatches(context.Background(), BatchOptions{Examples: makeExamples(1)})
	require.ErrorContains(t, err, "batch size")
}

func TestStartBatchesCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream, errCh, err := StartBatches(ctx, BatchOptions{
		Examples:   makeExamples(1000),
		BatchSize:  1,
		MaxLen:     2,
		NumWorkers: 2,
	})
	require.NoError(t, err)
	<-stream
	cancel()
	for range stream {
	}
	for err := range errCh {
		require.NoError(t, err)
	}
}
