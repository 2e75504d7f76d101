package dataset

import (
	"fmt"
	"sort"
	"sync"

	"sentiforge/internal/tokenizer"
)

// WordIndex maps a token to its frequency rank; rank 1 is the most frequent token.
type WordIndex map[string]int

// BuildWordIndex ranks the tokens of the given token lists by frequency.
// Ties are broken lexically so the index is stable across runs.
func BuildWordIndex(docs [][]string) WordIndex {
	counts := make(map[string]int)
	for _, doc := range docs {
		for _, tok := range doc {
			counts[tok]++
		}
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		ci, cj := counts[words[i]], counts[words[j]]
		if ci != cj {
			return ci > cj
		}
		return words[i] < words[j]
	})
	index := make(WordIndex, len(words))
	for i, w := range words {
		index[w] = i + 1
	}
	return index
}

// Encode maps tokens to ranks. Tokens missing from the index map to 0,
// which Load later turns into the out-of-vocabulary id.
func (w WordIndex) Encode(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = w[tok]
	}
	return ids
}

// tokenizeAll tokenizes reviews on numWorkers goroutines, preserving order.
func tokenizeAll(reviews []Review, tok tokenizer.Tokenizer, numWorkers int) ([][]string, error) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	out := make([][]string, len(reviews))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				tokens, err := tok.Tokenize(reviews[i].Text)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("tokenize %s: %w", reviews[i].Key, err)
					}
					mu.Unlock()
					continue
				}
				out[i] = tokens
			}
		}()
	}
	for i := range reviews {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
