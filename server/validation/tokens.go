package validation

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer defines the interface for token counting
type Tokenizer interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// TokenCounter estimates prompt sizes with a tiktoken encoding. The count
// is an approximation for non-OpenAI models but errs on the generous side
// for the prompts used here.
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter creates a counter for name, which may be a model name
// (gpt-4o) or an encoding name (cl100k_base). The encoding's ranks are
// fetched on first use unless tiktoken's offline loader is configured.
func NewTokenCounter(name string) (*TokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(name)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding for %s: %w", name, err)
		}
	}
	return NewTokenCounterWithTokenizer(encoding), nil
}

// NewTokenCounterWithTokenizer wraps an existing tokenizer.
func NewTokenCounterWithTokenizer(t Tokenizer) *TokenCounter {
	return &TokenCounter{encoding: t}
}

// Count returns the number of tokens in text.
func (tc *TokenCounter) Count(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}
