package dataset

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// Batch is a padded minibatch ready for the model.
type Batch struct {
	ID     int
	Inputs [][]int
	Labels []int
}

// BatchOptions configures StartBatches.
type BatchOptions struct {
	Examples   []Example
	BatchSize  int
	MaxLen     int
	Pad        PadOptions
	Shuffle    bool
	Seed       int64
	NumWorkers int
}

// NumBatches returns the number of batches an epoch over n examples yields.
func NumBatches(n, batchSize int) int {
	if batchSize <= 0 {
		return 0
	}
	return (n + batchSize - 1) / batchSize
}

// StartBatches launches the batch pipeline: a job producer hands index ranges to
// workers that pad and assemble batches, and an aggregator re-orders the results
// so batches arrive in ID order regardless of worker scheduling.
func StartBatches(parent context.Context, opts BatchOptions) (<-chan Batch, <-chan error, error) {
	if len(opts.Examples) == 0 {
		return nil, nil, errors.New("dataset: no examples to batch")
	}
	if opts.BatchSize <= 0 {
		return nil, nil, errors.New("dataset: batch size must be > 0")
	}
	if opts.MaxLen <= 0 {
		return nil, nil, errors.New("dataset: max length must be > 0")
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}

	ctx, cancel := context.WithCancel(parent)

	order := make([]int, len(opts.Examples))
	for i := range order {
		order[i] = i
	}
	if opts.Shuffle {
		rng := rand.New(rand.NewSource(opts.Seed))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	jobs := make(chan batchJob, opts.NumWorkers)
	results := make(chan batchResult, opts.NumWorkers)
	out := make(chan Batch, opts.NumWorkers)
	errCh := make(chan error, 1)

	go produceBatchJobs(ctx, jobs, order, opts.BatchSize)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batchWorker(ctx, jobs, results, opts)
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer cancel()
		defer close(out)
		defer close(errCh)
		if err := aggregateBatches(ctx, results, out); err != nil {
			errCh <- err
		}
	}()

	return out, errCh, nil
}

type batchJob struct {
	id      int
	indices []int
}

type batchResult struct {
	batch Batch
	err   error
}

func produceBatchJobs(ctx context.Context, jobs chan<- batchJob, order []int, batchSize int) {
	defer close(jobs)
	for id, start := 0, 0; start < len(order); id, start = id+1, start+batchSize {
		end := start + batchSize
		if end > len(order) {
			end = len(order)
		}
		select {
		case <-ctx.Done():
			return
		case jobs <- batchJob{id: id, indices: order[start:end]}:
		}
	}
}

func batchWorker(ctx context.Context, jobs <-chan batchJob, results chan<- batchResult, opts BatchOptions) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			res := batchResult{batch: Batch{
				ID:     job.id,
				Inputs: make([][]int, len(job.indices)),
				Labels: make([]int, len(job.indices)),
			}}
			for i, idx := range job.indices {
				ex := opts.Examples[idx]
				if ex.Label != 0 && ex.Label != 1 {
					res.err = fmt.Errorf("dataset: example %d has label %d", idx, ex.Label)
					break
				}
				res.batch.Inputs[i] = PadSequence(ex.Tokens, opts.MaxLen, opts.Pad)
				res.batch.Labels[i] = ex.Label
			}
			select {
			case <-ctx.Done():
				return
			case results <- res:
			}
		}
	}
}

func aggregateBatches(ctx context.Context, results <-chan batchResult, out chan<- Batch) error {
	pending := make(map[int]Batch)
	next := 0
	for {
		if batch, ok := pending[next]; ok {
			select {
			case <-ctx.Done():
				return nil
			case out <- batch:
			}
			delete(pending, next)
			next++
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-results:
			if !ok {
				if len(pending) > 0 {
					return fmt.Errorf("dataset: %d batches undelivered", len(pending))
				}
				return nil
			}
			if res.err != nil {
				return res.err
			}
			pending[res.batch.ID] = res.batch
		}
	}
}
