package token

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator maps text to an approximate token count. Implementations must be
// deterministic and monotonic (more text never yields a smaller estimate).
type Estimator interface {
	Estimate(text string) int
}

// Heuristic estimates tokens as character count divided by 4, rounded down.
// Cheap, tokenizer-free default. Empty text estimates to zero.
type Heuristic struct{}

func (Heuristic) Estimate(text string) int {
	return len(text) / 4
}

// Tiktoken estimates tokens using a real BPE encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken returns an estimator backed by the named encoding
// (e.g. "cl100k_base").
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %q: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Estimate(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
