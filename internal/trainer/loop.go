package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"sentiforge/internal/dataset"
	"sentiforge/internal/metrics"
	"sentiforge/internal/model"
)

// FitConfig captures the knobs required by the training loop.
type FitConfig struct {
	Epochs     int
	BatchSize  int
	MaxLen     int
	NumWorkers int
	LogEvery   int
	Seed       int64
}

func (c *FitConfig) validate() error {
	if c.Epochs <= 0 {
		return errors.New("trainer: epochs must be > 0")
	}
	if c.BatchSize <= 0 {
		return errors.New("trainer: batch size must be > 0")
	}
	if c.MaxLen <= 0 {
		return errors.New("trainer: max length must be > 0")
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 50
	}
	return nil
}

// Fit trains m for cfg.Epochs passes over train, reshuffling every epoch.
// When val is non-empty it is scored after each epoch.
func Fit(ctx context.Context, m model.Model, train, val []dataset.Example, cfg FitConfig) (*metrics.History, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(train) == 0 {
		return nil, errors.New("trainer: no training examples")
	}

	hist := &metrics.History{}
	steps := dataset.NumBatches(len(train), cfg.BatchSize)
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		start := time.Now()
		var (
			loss   metrics.Mean
			acc    metrics.BinaryAccuracy
			window metrics.Window
		)
		opts := dataset.BatchOptions{
			Examples:   train,
			BatchSize:  cfg.BatchSize,
			MaxLen:     cfg.MaxLen,
			Shuffle:    true,
			Seed:       cfg.Seed + int64(epoch),
			NumWorkers: cfg.NumWorkers,
		}
		err := eachBatch(ctx, opts, func(b dataset.Batch, dataTime time.Duration) error {
			startCompute := time.Now()
			res, err := m.TrainStep(model.Batch{Inputs: b.Inputs, Labels: b.Labels})
			if err != nil {
				return fmt.Errorf("epoch %d step %d: %w", epoch, b.ID+1, err)
			}
			computeTime := time.Since(startCompute)

			loss.Add(res.Loss, res.Count)
			acc.Add(res.Correct, res.Count)
			window.Record(res.Count, dataTime, computeTime, res.Loss, res.Accuracy())

			if step := b.ID + 1; step%cfg.LogEvery == 0 || step == steps {
				snap := window.Snapshot()
				log.Printf("epoch=%d step=%d/%d reviews_per_sec=%.1f data_ms=%.2f compute_ms=%.2f batch_loss=%.4f batch_acc=%.4f loss=%.4f acc=%.4f",
					epoch,
					step,
					steps,
					snap.ReviewsPerSec,
					snap.AvgDataMS,
					snap.AvgComputeMS,
					snap.LastLoss,
					snap.LastAcc,
					loss.Value(),
					acc.Value(),
				)
			}
			return nil
		})
		if err != nil {
			return hist, err
		}

		rec := metrics.Epoch{Epoch: epoch, Loss: loss.Value(), Acc: acc.Value()}
		if len(val) > 0 {
			rec.ValLoss, rec.ValAcc, err = Evaluate(ctx, m, val, EvalConfig{
				BatchSize:  cfg.BatchSize,
				MaxLen:     cfg.MaxLen,
				NumWorkers: cfg.NumWorkers,
			})
			if err != nil {
				return hist, fmt.Errorf("epoch %d validation: %w", epoch, err)
			}
			rec.HasVal = true
		}
		rec.Duration = time.Since(start)
		hist.Append(rec)
		log.Print(rec)
	}
	return hist, nil
}

// EvalConfig configures Evaluate.
type EvalConfig struct {
	BatchSize  int
	MaxLen     int
	NumWorkers int
}

// Evaluate scores m on examples and returns the mean loss and accuracy.
func Evaluate(ctx context.Context, m model.Model, examples []dataset.Example, cfg EvalConfig) (float64, float64, error) {
	if cfg.BatchSize <= 0 || cfg.MaxLen <= 0 {
		return 0, 0, errors.New("trainer: batch size and max length must be > 0")
	}
	if len(examples) == 0 {
		return 0, 0, errors.New("trainer: no evaluation examples")
	}
	var (
		loss metrics.Mean
		acc  metrics.BinaryAccuracy
	)
	opts := dataset.BatchOptions{
		Examples:   examples,
		BatchSize:  cfg.BatchSize,
		MaxLen:     cfg.MaxLen,
		NumWorkers: cfg.NumWorkers,
	}
	err := eachBatch(ctx, opts, func(b dataset.Batch, _ time.Duration) error {
		res, err := m.EvaluateBatch(model.Batch{Inputs: b.Inputs, Labels: b.Labels})
		if err != nil {
			return fmt.Errorf("evaluate batch %d: %w", b.ID, err)
		}
		loss.Add(res.Loss, res.Count)
		acc.Add(res.Correct, res.Count)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return loss.Value(), acc.Value(), nil
}

// eachBatch drains the batch pipeline in order, passing fn the time spent
// waiting for each batch.
func eachBatch(parent context.Context, opts dataset.BatchOptions, fn func(dataset.Batch, time.Duration) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	batches, errs, err := dataset.StartBatches(ctx, opts)
	if err != nil {
		return err
	}
	for {
		startData := time.Now()
		var (
			batch dataset.Batch
			ok    bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok = <-batches:
		}
		if !ok {
			if err := <-errs; err != nil {
				return err
			}
			return parent.Err()
		}
		if err := fn(batch, time.Since(startData)); err != nil {
			return err
		}
	}
}
