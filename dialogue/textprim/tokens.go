// Package textprim holds the text primitives the analyzer treats as black boxes:
// sub-word token counts, sentiment, translation-overlap scores and string similarity.
package textprim

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used for token counts.
const DefaultEncoding = "cl100k_base"

// TokenCounter counts sub-word tokens in a text.
type TokenCounter interface {
	CountTokens(text string) int
}

// TiktokenCounter counts tokens with a tiktoken BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding. Loading may fetch the BPE ranks over the
// network on first use unless a local cache is configured (TIKTOKEN_CACHE_DIR).
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("NewTiktokenCounter: load %q: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// HeuristicCounter approximates BPE counts at roughly four bytes per token, with every
// whitespace-separated word costing at least one token.
type HeuristicCounter struct{}

func (HeuristicCounter) CountTokens(text string) int {
	n := 0
	for _, w := range strings.Fields(text) {
		l := len(w)
		if utf8.RuneCountInString(w) == l {
			n += max(1, (l+3)/4)
			continue
		}
		// Non-ASCII scripts tokenize much denser than English.
		n += max(1, utf8.RuneCountInString(w))
	}
	return n
}

// NewTokenCounter returns a tiktoken counter for encoding, or the heuristic counter when
// encoding is "heuristic" or the encoding cannot be loaded. The returned error is non-nil
// only to report the fallback.
func NewTokenCounter(encoding string) (TokenCounter, error) {
	if strings.EqualFold(encoding, "heuristic") {
		return HeuristicCounter{}, nil
	}
	c, err := NewTiktokenCounter(encoding)
	if err != nil {
		return HeuristicCounter{}, err
	}
	return c, nil
}
