package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Variant names accepted in the variants list.
const (
	VariantLSTM        = "lstm"
	VariantLSTMDropout = "lstm-dropout"
	VariantCNNLSTM     = "cnn-lstm"
)

// Dataset formats.
const (
	FormatAuto    = "auto"
	FormatEncoded = "encoded"
	FormatACLImdb = "aclimdb"
	FormatArchive = "archive"
)

// Optimizers.
const (
	OptimizerAdam = "adam"
	OptimizerSGD  = "sgd"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SENTIFORGE_"

// Config captures the runtime knobs for an experiment run.
type Config struct {
	DataDir          string   `yaml:"data_dir"`
	Format           string   `yaml:"format"`
	Tokenizer        string   `yaml:"tokenizer"`
	TikTokenEncoding string   `yaml:"tiktoken_encoding"`
	VocabSize        int      `yaml:"vocab_size"`
	SkipTop          int      `yaml:"skip_top"`
	MaxLen           int      `yaml:"max_len"`
	EmbeddingDim     int      `yaml:"embedding_dim"`
	LSTMUnits        int      `yaml:"lstm_units"`
	Filters          int      `yaml:"filters"`
	KernelSize       int      `yaml:"kernel_size"`
	PoolSize         int      `yaml:"pool_size"`
	Dropout          float64  `yaml:"dropout"`
	Epochs           int      `yaml:"epochs"`
	BatchSize        int      `yaml:"batch_size"`
	Optimizer        string   `yaml:"optimizer"`
	LearningRate     float64  `yaml:"learning_rate"`
	ClipNorm         float64  `yaml:"clip_norm"`
	Seed             int64    `yaml:"seed"`
	NumWorkers       int      `yaml:"num_workers"`
	LogEvery         int      `yaml:"log_every"`
	Variants         []string `yaml:"variants"`
	LimitTrain       int      `yaml:"limit_train"`
	LimitTest        int      `yaml:"limit_test"`
	// EvalEachEpoch scores the test split after every epoch as validation data.
	EvalEachEpoch    bool     `yaml:"eval_each_epoch"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	DataDir       string
	Format        string
	Tokenizer     string
	VocabSize     int
	SkipTop       int
	MaxLen        int
	Epochs        int
	BatchSize     int
	Optimizer     string
	LearningRate  float64
	Seed          int64
	NumWorkers    int
	LogEvery      int
	Variants      []string
	LimitTrain    int
	LimitTest     int
	EvalEachEpoch bool
}

// Defaults returns the hyperparameters of the reference experiment.
func Defaults() *Config {
	return &Config{
		Format:           FormatAuto,
		Tokenizer:        "word",
		TikTokenEncoding: "cl100k_base",
		VocabSize:        5000,
		MaxLen:           500,
		EmbeddingDim:     32,
		LSTMUnits:        100,
		Filters:          32,
		KernelSize:       3,
		PoolSize:         2,
		Dropout:          0.2,
		Epochs:           3,
		BatchSize:        64,
		Optimizer:        OptimizerAdam,
		LearningRate:     0.001,
		Seed:             7,
		LogEvery:         50,
		Variants:         []string{VariantLSTM, VariantLSTMDropout, VariantCNNLSTM},
	}
}

// Load reads a Config from YAML on top of Defaults. Callers validate once
// the env and flag layers have been applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadEnv loads an optional .env file and applies SENTIFORGE_* variables.
// A missing .env file is not an error.
func (c *Config) LoadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load env file: %w", err)
		}
	}
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}
	float := func(key string, dst *float64) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
		*dst = f
		return nil
	}

	str("DATA_DIR", &c.DataDir)
	str("FORMAT", &c.Format)
	str("TOKENIZER", &c.Tokenizer)
	str("TIKTOKEN_ENCODING", &c.TikTokenEncoding)
	str("OPTIMIZER", &c.Optimizer)

	ints := []struct {
		key string
		dst *int
	}{
		{"VOCAB_SIZE", &c.VocabSize},
		{"SKIP_TOP", &c.SkipTop},
		{"MAX_LEN", &c.MaxLen},
		{"EMBEDDING_DIM", &c.EmbeddingDim},
		{"LSTM_UNITS", &c.LSTMUnits},
		{"FILTERS", &c.Filters},
		{"KERNEL_SIZE", &c.KernelSize},
		{"POOL_SIZE", &c.PoolSize},
		{"EPOCHS", &c.Epochs},
		{"BATCH_SIZE", &c.BatchSize},
		{"NUM_WORKERS", &c.NumWorkers},
		{"LOG_EVERY", &c.LogEvery},
		{"LIMIT_TRAIN", &c.LimitTrain},
		{"LIMIT_TEST", &c.LimitTest},
	}
	for _, e := range ints {
		if err := num(e.key, e.dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*float64{
		"DROPOUT":       &c.Dropout,
		"LEARNING_RATE": &c.LearningRate,
		"CLIP_NORM":     &c.ClipNorm,
	} {
		if err := float(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvPrefix + "SEED"); ok && v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("env %sSEED: %w", EnvPrefix, err)
		}
		c.Seed = seed
	}
	if v, ok := lookup(EnvPrefix + "EVAL_EACH_EPOCH"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("env %sEVAL_EACH_EPOCH: %w", EnvPrefix, err)
		}
		c.EvalEachEpoch = b
	}
	if v, ok := lookup(EnvPrefix + "VARIANTS"); ok && v != "" {
		c.Variants = SplitList(v)
	}
	return nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.Format != "" {
		c.Format = o.Format
	}
	if o.Tokenizer != "" {
		c.Tokenizer = o.Tokenizer
	}
	if o.VocabSize > 0 {
		c.VocabSize = o.VocabSize
	}
	if o.SkipTop > 0 {
		c.SkipTop = o.SkipTop
	}
	if o.MaxLen > 0 {
		c.MaxLen = o.MaxLen
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.Optimizer != "" {
		c.Optimizer = o.Optimizer
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if len(o.Variants) > 0 {
		c.Variants = o.Variants
	}
	if o.LimitTrain > 0 {
		c.LimitTrain = o.LimitTrain
	}
	if o.LimitTest > 0 {
		c.LimitTest = o.LimitTest
	}
	if o.EvalEachEpoch {
		c.EvalEachEpoch = true
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	switch c.Format {
	case "":
		c.Format = FormatAuto
	case FormatAuto, FormatEncoded, FormatACLImdb, FormatArchive:
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	switch c.Optimizer {
	case "":
		c.Optimizer = OptimizerAdam
	case OptimizerAdam, OptimizerSGD:
	default:
		return fmt.Errorf("unknown optimizer %q", c.Optimizer)
	}
	switch c.Tokenizer {
	case "":
		c.Tokenizer = "word"
	case "word", "tiktoken":
	default:
		return fmt.Errorf("unknown tokenizer %q", c.Tokenizer)
	}

	positives := []struct {
		name  string
		value int
	}{
		{"vocab_size", c.VocabSize},
		{"max_len", c.MaxLen},
		{"embedding_dim", c.EmbeddingDim},
		{"lstm_units", c.LSTMUnits},
		{"filters", c.Filters},
		{"kernel_size", c.KernelSize},
		{"pool_size", c.PoolSize},
		{"epochs", c.Epochs},
		{"batch_size", c.BatchSize},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("%s must be > 0 (got %d)", p.name, p.value)
		}
	}
	if c.VocabSize <= 3 {
		return fmt.Errorf("vocab_size must leave room for reserved ids (got %d)", c.VocabSize)
	}
	if c.SkipTop < 0 || c.SkipTop >= c.VocabSize {
		return fmt.Errorf("skip_top must be in [0, vocab_size) (got %d)", c.SkipTop)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0, 1) (got %g)", c.Dropout)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.ClipNorm < 0 {
		return fmt.Errorf("clip_norm must be >= 0 (got %g)", c.ClipNorm)
	}
	if c.LimitTrain < 0 || c.LimitTest < 0 {
		return errors.New("limit_train and limit_test must be >= 0")
	}
	if len(c.Variants) == 0 {
		return errors.New("at least one variant must be requested")
	}
	for _, v := range c.Variants {
		switch v {
		case VariantLSTM, VariantLSTMDropout, VariantCNNLSTM:
		default:
			return fmt.Errorf("unknown variant %q", v)
		}
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = runtime.NumCPU()
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 50
	}
	return nil
}

// SplitList splits a comma separated flag or env value.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
