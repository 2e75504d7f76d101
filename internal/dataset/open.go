package dataset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"sentiforge/internal/tokenizer"
)

// Source formats understood by Open.
const (
	FormatAuto    = "auto"
	FormatEncoded = "encoded"
	FormatACLImdb = "aclimdb"
	FormatArchive = "archive"
)

// ErrUnknownFormat is returned when a path matches no known layout.
var ErrUnknownFormat = errors.New("dataset: cannot detect dataset format")

// OpenOptions configures Open and Prepare.
type OpenOptions struct {
	Path       string
	Format     string
	Tokenizer  tokenizer.Tokenizer
	NumWorkers int
	Load       LoadOptions
}

// DetectFormat inspects path and reports its layout.
func DetectFormat(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat dataset: %w", err)
	}
	if !info.IsDir() {
		if IsArchive(path) {
			return FormatArchive, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if _, err := os.Stat(filepath.Join(path, TrainFile)); err == nil {
		return FormatEncoded, nil
	}
	for _, candidate := range []string{
		filepath.Join(path, SplitTrain),
		filepath.Join(path, "aclImdb", SplitTrain),
	} {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return FormatACLImdb, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Open loads a dataset in any supported format. Raw corpora are tokenized and
// ranked in memory, then go through the same transform as an encoded dataset.
func Open(ctx context.Context, opts OpenOptions) (*Dataset, error) {
	format := opts.Format
	if format == "" || format == FormatAuto {
		detected, err := DetectFormat(opts.Path)
		if err != nil {
			return nil, err
		}
		format = detected
	}
	if format == FormatEncoded {
		return Load(opts.Path, opts.Load)
	}

	train, test, index, err := rankRaw(ctx, format, opts)
	if err != nil {
		return nil, err
	}
	return fromRanked(train, test, index, opts.Load), nil
}

// Prepare converts a raw corpus into the encoded layout under dst.
func Prepare(ctx context.Context, dst string, opts OpenOptions) error {
	format := opts.Format
	if format == "" || format == FormatAuto {
		detected, err := DetectFormat(opts.Path)
		if err != nil {
			return err
		}
		format = detected
	}
	if format == FormatEncoded {
		return fmt.Errorf("dataset: %s is already encoded", opts.Path)
	}
	train, test, index, err := rankRaw(ctx, format, opts)
	if err != nil {
		return err
	}
	if err := WriteEncoded(dst, train, test, index); err != nil {
		return err
	}
	log.Printf("prepared dataset dst=%s train=%d test=%d vocab=%d", dst, len(train), len(test), len(index))
	return nil
}

func rankRaw(ctx context.Context, format string, opts OpenOptions) ([]Example, []Example, WordIndex, error) {
	tok := opts.Tokenizer
	if tok == nil {
		tok = tokenizer.Word{}
	}

	var reviews []Review
	switch format {
	case FormatArchive:
		var err error
		reviews, err = CollectArchive(ctx, opts.Path)
		if err != nil {
			return nil, nil, nil, err
		}
	case FormatACLImdb:
		files, err := DiscoverReviews(opts.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		reviews, err = ReadReviews(files)
		if err != nil {
			return nil, nil, nil, err
		}
	default:
		return nil, nil, nil, fmt.Errorf("dataset: unsupported raw format %q", format)
	}
	if len(reviews) == 0 {
		return nil, nil, nil, fmt.Errorf("dataset: no labeled reviews under %s", opts.Path)
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].Key < reviews[j].Key })
	log.Printf("tokenizing reviews=%d tokenizer=%s", len(reviews), tok.Name())

	docs, err := tokenizeAll(reviews, tok, opts.NumWorkers)
	if err != nil {
		return nil, nil, nil, err
	}

	var trainDocs [][]string
	for i, r := range reviews {
		if r.Split == SplitTrain {
			trainDocs = append(trainDocs, docs[i])
		}
	}
	index := BuildWordIndex(trainDocs)

	var train, test []Example
	for i, r := range reviews {
		ex := Example{Tokens: index.Encode(docs[i]), Label: r.Label}
		if r.Split == SplitTrain {
			train = append(train, ex)
		} else {
			test = append(test, ex)
		}
	}
	return train, test, index, nil
}
