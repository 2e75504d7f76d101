package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sentiforge/internal/config"
	"sentiforge/internal/dataset"
	"sentiforge/internal/model"
	"sentiforge/internal/tokenizer"
	"sentiforge/internal/trainer"
)

var version = "dev"

func main() {
	cmd, args := splitCommand(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "train":
		runTrain(ctx, args)
	case "prepare":
		runPrepare(ctx, args)
	case "version":
		fmt.Println("sentiforge", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want train, prepare or version)\n", cmd)
		os.Exit(2)
	}
}

// splitCommand returns the subcommand and its arguments; bare flags mean train.
func splitCommand(args []string) (string, []string) {
	if len(args) == 0 || len(args[0]) > 0 && args[0][0] == '-' {
		return "train", args
	}
	return args[0], args[1:]
}

func runTrain(ctx context.Context, args []string) {
	cfg, err := loadTrainConfig(args)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

	tk, err := tokenizer.New(cfg.Tokenizer, cfg.TikTokenEncoding)
	if err != nil {
		log.Fatalf("tokenizer: %v", err)
	}

	data, err := dataset.Open(ctx, dataset.OpenOptions{
		Path:       cfg.DataDir,
		Format:     cfg.Format,
		Tokenizer:  tk,
		NumWorkers: cfg.NumWorkers,
		Load:       dataset.LoadOptions{NumWords: cfg.VocabSize, SkipTop: cfg.SkipTop},
	})
	if err != nil {
		log.Fatalf("load dataset %s: %v", cfg.DataDir, err)
	}
	data.Limit(cfg.LimitTrain, cfg.LimitTest)
	log.Printf("dataset=%s train=%d test=%d vocab_size=%d max_len=%d", cfg.DataDir, len(data.Train), len(data.Test), cfg.VocabSize, cfg.MaxLen)

	runCfg := trainer.RunConfig{
		Data: data,
		Hyper: model.Hyper{
			VocabSize:    cfg.VocabSize,
			MaxLen:       cfg.MaxLen,
			EmbeddingDim: cfg.EmbeddingDim,
			LSTMUnits:    cfg.LSTMUnits,
			Filters:      cfg.Filters,
			KernelSize:   cfg.KernelSize,
			PoolSize:     cfg.PoolSize,
			Dropout:      cfg.Dropout,
		},
		Variants:      cfg.Variants,
		Epochs:        cfg.Epochs,
		BatchSize:     cfg.BatchSize,
		Optimizer:     cfg.Optimizer,
		LearningRate:  cfg.LearningRate,
		ClipNorm:      cfg.ClipNorm,
		Seed:          cfg.Seed,
		NumWorkers:    cfg.NumWorkers,
		LogEvery:      cfg.LogEvery,
		EvalEachEpoch: cfg.EvalEachEpoch,
		Out:           os.Stdout,
	}

	if _, err := trainer.Run(ctx, runCfg); err != nil {
		log.Fatalf("training failed: %v", err)
	}
}

// loadTrainConfig layers the YAML file, the .env file and SENTIFORGE_*
// variables, then flags, and validates the result.
func loadTrainConfig(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	cfgPath := fs.String("config", "configs/imdb.yaml", "Path to YAML config")
	envPath := fs.String("env-file", ".env", "Optional .env file with SENTIFORGE_* overrides")
	dataDir := fs.String("data", "", "Override dataset path (encoded dir, aclImdb dir or tar.gz)")
	format := fs.String("format", "", "Dataset format: auto, encoded, aclimdb, archive")
	tok := fs.String("tokenizer", "", "Tokenizer for raw corpora: word or tiktoken")
	vocabSize := fs.Int("vocab-size", 0, "Vocabulary cutoff")
	skipTop := fs.Int("skip-top", 0, "Map the N most frequent words to the OOV id")
	maxLen := fs.Int("max-len", 0, "Padded review length")
	epochs := fs.Int("epochs", 0, "Number of epochs")
	batchSize := fs.Int("batch-size", 0, "Batch size")
	optimizer := fs.String("optimizer", "", "Optimizer: adam or sgd")
	lr := fs.Float64("lr", 0, "Learning rate")
	numWorkers := fs.Int("num-workers", 0, "Number of batch and gradient workers")
	seed := fs.Int64("seed", 0, "PRNG seed")
	logEvery := fs.Int("log-every", 0, "Log every N steps")
	variants := fs.String("variants", "", "Comma separated variants: lstm, lstm-dropout, cnn-lstm")
	limitTrain := fs.Int("limit-train", 0, "Use at most N training reviews")
	limitTest := fs.Int("limit-test", 0, "Use at most N test reviews")
	evalEachEpoch := fs.Bool("eval-each-epoch", false, "Score the test split after every epoch")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.Defaults()
	if *cfgPath != "" {
		loaded, err := loadConfigFile(*cfgPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.LoadEnv(*envPath); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		DataDir:       *dataDir,
		Format:        *format,
		Tokenizer:     *tok,
		VocabSize:     *vocabSize,
		SkipTop:       *skipTop,
		MaxLen:        *maxLen,
		Epochs:        *epochs,
		BatchSize:     *batchSize,
		Optimizer:     *optimizer,
		LearningRate:  *lr,
		Seed:          *seed,
		NumWorkers:    *numWorkers,
		LogEvery:      *logEvery,
		Variants:      config.SplitList(*variants),
		LimitTrain:    *limitTrain,
		LimitTest:     *limitTest,
		EvalEachEpoch: *evalEachEpoch,
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadConfigFile reads path, falling back to defaults when the default config
// is absent. The data path is then expected from the environment or flags.
func loadConfigFile(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == "configs/imdb.yaml" {
		return config.Defaults(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func runPrepare(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("prepare", flag.ExitOnError)
	src := fs.String("src", "", "aclImdb directory or aclImdb_v1.tar.gz")
	out := fs.String("out", "", "Destination directory for the encoded dataset")
	format := fs.String("format", dataset.FormatAuto, "Source format: auto, aclimdb, archive")
	tok := fs.String("tokenizer", "word", "Tokenizer: word or tiktoken")
	encoding := fs.String("tiktoken-encoding", "cl100k_base", "tiktoken encoding name")
	numWorkers := fs.Int("num-workers", 0, "Number of tokenizer workers")
	fs.Parse(args)

	if *src == "" || *out == "" {
		log.Fatalf("prepare needs -src and -out")
	}
	tk, err := tokenizer.New(*tok, *encoding)
	if err != nil {
		log.Fatalf("tokenizer: %v", err)
	}
	err = dataset.Prepare(ctx, *out, dataset.OpenOptions{
		Path:       *src,
		Format:     *format,
		Tokenizer:  tk,
		NumWorkers: *numWorkers,
	})
	if err != nil {
		log.Fatalf("prepare failed: %v", err)
	}
}
