package tokens

import (
	"fmt"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

const (
	// CharsPerToken is the heuristic for estimating tokens (chars/4)
	CharsPerToken = 4

	// NameHeuristic selects the character heuristic
	NameHeuristic = "heuristic"
)

// Estimator counts tokens in a piece of text
type Estimator interface {
	Count(text string) int
}

// Heuristic estimates tokens as characters/4. Non-empty text is never free.
type Heuristic struct{}

// Count implements Estimator
func (Heuristic) Count(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / CharsPerToken
	if n == 0 {
		return 1
	}
	return n
}

// Tiktoken counts BPE tokens with a tiktoken encoding such as cl100k_base
type Tiktoken struct {
	enc *tiktoken.Tiktoken
	mu  sync.Mutex
}

// NewTiktoken loads the named encoding
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: get encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Count implements Estimator
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// FromName returns the estimator for a configured tokenizer name.
// An empty name or "heuristic" selects the character heuristic.
func FromName(name string) (Estimator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameHeuristic:
		return Heuristic{}, nil
	default:
		return NewTiktoken(name)
	}
}
