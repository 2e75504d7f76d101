// Package tokenizer splits raw review text into the tokens that make up a vocabulary.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"
)

// Tokenizer turns a review into a list of vocabulary keys.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
	Name() string
}

// New returns the tokenizer registered under kind.
func New(kind, encoding string) (Tokenizer, error) {
	switch kind {
	case "", "word":
		return Word{}, nil
	case "tiktoken":
		return NewTikToken(encoding)
	default:
		return nil, fmt.Errorf("tokenizer: unknown kind %q", kind)
	}
}

// filterChars are stripped from text before splitting, apostrophes excluded.
const filterChars = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~\t\n"

// Word is a lower-casing word splitter.
type Word struct{}

// Name implements Tokenizer.
func (Word) Name() string { return "word" }

// Tokenize implements Tokenizer.
func (Word) Tokenize(text string) ([]string, error) {
	text = strings.ReplaceAll(text, "<br />", " ")
	text = strings.ToLower(text)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(filterChars, r)
	})
	return fields, nil
}
