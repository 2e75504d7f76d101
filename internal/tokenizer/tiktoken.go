package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TikToken tokenizes with an OpenAI BPE encoding. Each token key is the
// decoded text of one BPE piece, so the vocabulary stays human readable.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken loads the named encoding, e.g. "cl100k_base".
func NewTikToken(encodingName string) (*TikToken, error) {
	if encodingName == "" {
		encodingName = "cl100k_base"
	}
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: load tiktoken encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// Name implements Tokenizer.
func (t *TikToken) Name() string { return "tiktoken/" + t.name }

// Tokenize implements Tokenizer.
func (t *TikToken) Tokenize(text string) ([]string, error) {
	ids := t.encoding.Encode(text, nil, nil)
	pieces := make([]string, len(ids))
	for i, id := range ids {
		pieces[i] = t.encoding.Decode([]int{id})
	}
	return pieces, nil
}
