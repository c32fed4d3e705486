package tokenizer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens in text. Implementations must be deterministic.
type Tokenizer interface {
	Count(text string) int
}

// Tiktoken counts tokens with a BPE encoding such as cl100k_base.
type Tiktoken struct {
	enc      *tiktoken.Tiktoken
	encoding string
}

// NewTiktoken loads the named encoding. The BPE ranks are fetched once and
// cached under TIKTOKEN_CACHE_DIR when that variable is set.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if strings.TrimSpace(encoding) == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc, encoding: encoding}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Encoding returns the name of the loaded encoding.
func (t *Tiktoken) Encoding() string { return t.encoding }

// Estimator approximates four characters per token, rounded up.
type Estimator struct{}

func (Estimator) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// New returns the tokenizer selected by kind ("tiktoken" or "estimate").
func New(kind, encoding string) (Tokenizer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "tiktoken":
		return NewTiktoken(encoding)
	case "estimate":
		return Estimator{}, nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", kind)
	}
}
