package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"sentiforge/internal/dataset"
	"sentiforge/internal/metrics"
	"sentiforge/internal/model"
)

// RunConfig describes one experiment: every variant is trained and scored on
// the same data with the same hyperparameters.
type RunConfig struct {
	Data          *dataset.Dataset
	Hyper         model.Hyper
	Variants      []string
	Epochs        int
	BatchSize     int
	Optimizer     string
	LearningRate  float64
	ClipNorm      float64
	Seed          int64
	NumWorkers    int
	LogEvery      int
	EvalEachEpoch bool
	// Out receives model summaries and accuracy lines.
	Out io.Writer
}

// Result is the outcome of one variant.
type Result struct {
	RunID    string
	Variant  string
	Params   int
	Loss     float64
	Accuracy float64
	History  *metrics.History
	// Best is the epoch with the highest validation (or training) accuracy.
	Best     metrics.Epoch
	Duration time.Duration
}

// Run trains and evaluates each requested variant in turn.
func Run(ctx context.Context, cfg RunConfig) ([]Result, error) {
	if cfg.Data == nil {
		return nil, errors.New("trainer: dataset is nil")
	}
	if len(cfg.Variants) == 0 {
		return nil, errors.New("trainer: no variants requested")
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Optimizer == "" {
		cfg.Optimizer = model.OptimizerAdam
	}

	results := make([]Result, 0, len(cfg.Variants))
	for _, variant := range cfg.Variants {
		res, err := runVariant(ctx, cfg, variant)
		if err != nil {
			return results, fmt.Errorf("%s: %w", variant, err)
		}
		results = append(results, res)
	}
	if len(results) > 1 {
		writeComparison(cfg.Out, results)
	}
	return results, nil
}

func runVariant(ctx context.Context, cfg RunConfig, variant string) (Result, error) {
	start := time.Now()
	res := Result{RunID: uuid.NewString(), Variant: variant}

	net, err := model.Build(variant, cfg.Hyper, cfg.Seed)
	if err != nil {
		return res, err
	}
	net.SetWorkers(cfg.NumWorkers)
	res.Params = net.CountParams()
	net.Summary(cfg.Out)

	err = net.Compile(model.CompileOptions{
		Loss:         model.LossBinaryCrossentropy,
		Optimizer:    cfg.Optimizer,
		Metrics:      []string{model.MetricAccuracy},
		LearningRate: cfg.LearningRate,
		ClipNorm:     cfg.ClipNorm,
	})
	if err != nil {
		return res, err
	}

	log.Printf("run=%s variant=%s params=%d train=%d test=%d epochs=%d batch_size=%d optimizer=%s",
		res.RunID, variant, res.Params, len(cfg.Data.Train), len(cfg.Data.Test), cfg.Epochs, cfg.BatchSize, cfg.Optimizer)

	var val []dataset.Example
	if cfg.EvalEachEpoch {
		val = cfg.Data.Test
	}
	res.History, err = Fit(ctx, net, cfg.Data.Train, val, FitConfig{
		Epochs:     cfg.Epochs,
		BatchSize:  cfg.BatchSize,
		MaxLen:     cfg.Hyper.MaxLen,
		NumWorkers: cfg.NumWorkers,
		LogEvery:   cfg.LogEvery,
		Seed:       cfg.Seed,
	})
	if err != nil {
		return res, err
	}
	res.Best, _ = res.History.Best()
	if last, ok := res.History.Last(); ok {
		log.Printf("run=%s variant=%s train_loss=%.4f train_acc=%.4f best_epoch=%d", res.RunID, variant, last.Loss, last.Acc, res.Best.Epoch)
	}

	res.Loss, res.Accuracy, err = Evaluate(ctx, net, cfg.Data.Test, EvalConfig{
		BatchSize:  cfg.BatchSize,
		MaxLen:     cfg.Hyper.MaxLen,
		NumWorkers: cfg.NumWorkers,
	})
	if err != nil {
		return res, err
	}
	res.Duration = time.Since(start)

	log.Printf("run=%s variant=%s test_loss=%.4f test_acc=%.4f elapsed=%s",
		res.RunID, variant, res.Loss, res.Accuracy, res.Duration.Round(time.Second))
	fmt.Fprintf(cfg.Out, "Accuracy: %.2f%%\n\n", res.Accuracy*100)
	return res, nil
}

func writeComparison(w io.Writer, results []Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\tPARAMS\tTEST LOSS\tACCURACY\tBEST EPOCH\tELAPSED\tRUN")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.2f%%\t%d\t%s\t%s\n",
			r.Variant, r.Params, r.Loss, r.Accuracy*100, r.Best.Epoch, r.Duration.Round(time.Second), r.RunID)
	}
	tw.Flush()
}
