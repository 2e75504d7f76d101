package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// File names of the encoded dataset layout.
const (
	TrainFile     = "train.jsonl"
	TestFile      = "test.jsonl"
	WordIndexFile = "word_index.json"
)

// Reserved ids of a loaded dataset.
const (
	PadID   = 0
	StartID = 1
	OOVID   = 2
)

// Example is one encoded review.
type Example struct {
	Tokens []int
	Label  int
}

// Dataset holds the train and test splits.
type Dataset struct {
	Train     []Example
	Test      []Example
	WordIndex WordIndex
}

// Limit truncates the splits to at most train and test examples; zero keeps a split whole.
func (d *Dataset) Limit(train, test int) {
	if train > 0 && train < len(d.Train) {
		d.Train = d.Train[:train]
	}
	if test > 0 && test < len(d.Test) {
		d.Test = d.Test[:test]
	}
}

// LoadOptions controls how ranked token ids become model inputs.
type LoadOptions struct {
	// NumWords keeps ids below this bound, the rest become OOVChar. Zero keeps all.
	NumWords int
	// SkipTop maps the most frequent SkipTop words to OOVChar.
	SkipTop int
	// MaxLen drops sequences whose length (start id included) is not below MaxLen. Zero keeps all.
	MaxLen    int
	StartChar int
	OOVChar   int
	IndexFrom int
	Seed      int64
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.StartChar == 0 {
		o.StartChar = StartID
	}
	if o.OOVChar == 0 {
		o.OOVChar = OOVID
	}
	if o.IndexFrom == 0 {
		o.IndexFrom = 3
	}
	if o.Seed == 0 {
		o.Seed = 113
	}
	return o
}

type record struct {
	Label int   `json:"label"`
	IDs   []int `json:"ids"`
}

// Load reads an encoded dataset directory and applies opts.
func Load(dir string, opts LoadOptions) (*Dataset, error) {
	train, err := readRecords(filepath.Join(dir, TrainFile))
	if err != nil {
		return nil, err
	}
	test, err := readRecords(filepath.Join(dir, TestFile))
	if err != nil {
		return nil, err
	}
	index, err := readWordIndex(filepath.Join(dir, WordIndexFile))
	if err != nil {
		return nil, err
	}
	return fromRanked(train, test, index, opts), nil
}

// fromRanked shuffles both splits and maps ranks to model ids.
func fromRanked(train, test []Example, index WordIndex, opts LoadOptions) *Dataset {
	opts = opts.withDefaults()
	rng := rand.New(rand.NewSource(opts.Seed))
	return &Dataset{
		Train:     transform(shuffled(train, rng), opts),
		Test:      transform(shuffled(test, rng), opts),
		WordIndex: index,
	}
}

func shuffled(in []Example, rng *rand.Rand) []Example {
	out := append([]Example(nil), in...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func transform(in []Example, opts LoadOptions) []Example {
	out := make([]Example, 0, len(in))
	for _, ex := range in {
		ids := make([]int, 0, len(ex.Tokens)+1)
		ids = append(ids, opts.StartChar)
		for _, rank := range ex.Tokens {
			if rank <= 0 {
				ids = append(ids, opts.OOVChar)
				continue
			}
			ids = append(ids, rank+opts.IndexFrom)
		}
		if opts.MaxLen > 0 && len(ids) >= opts.MaxLen {
			continue
		}
		for i, id := range ids {
			if id < opts.SkipTop || (opts.NumWords > 0 && id >= opts.NumWords) {
				ids[i] = opts.OOVChar
			}
		}
		out = append(out, Example{Tokens: ids, Label: ex.Label})
	}
	return out
}

func readRecords(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var out []Example
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), lineNo, err)
		}
		if rec.Label != 0 && rec.Label != 1 {
			return nil, fmt.Errorf("%s line %d: label must be 0 or 1 (got %d)", filepath.Base(path), lineNo, rec.Label)
		}
		out = append(out, Example{Tokens: rec.IDs, Label: rec.Label})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

func readWordIndex(path string) (WordIndex, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read word index: %w", err)
	}
	var index WordIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse word index: %w", err)
	}
	return index, nil
}

// WriteEncoded writes ranked examples and the word index in the layout Load reads.
func WriteEncoded(dir string, train, test []Example, index WordIndex) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := writeRecords(filepath.Join(dir, TrainFile), train); err != nil {
		return err
	}
	if err := writeRecords(filepath.Join(dir, TestFile), test); err != nil {
		return err
	}
	if index == nil {
		return nil
	}
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode word index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, WordIndexFile), data, 0o644); err != nil {
		return fmt.Errorf("write word index: %w", err)
	}
	return nil
}

func writeRecords(path string, examples []Example) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, ex := range examples {
		ids := ex.Tokens
		if ids == nil {
			ids = []int{}
		}
		if err := enc.Encode(record{Label: ex.Label, IDs: ids}); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
