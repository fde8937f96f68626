package tokenizer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kirillkom/support-assistant/internal/core/ports"
)

const (
	DefaultEncoding = "cl100k_base"
	WordsEncoding   = "words"
)

// TiktokenCounter counts BPE tokens with a tiktoken encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if strings.TrimSpace(encoding) == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{encoding: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

var (
	_ ports.TokenCounter = (*TiktokenCounter)(nil)
	_ ports.TokenCounter = WordCounter{}
)

// WordCounter approximates tokens as 4/3 of the whitespace word count.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	words := len(strings.Fields(text))
	return (words*4 + 2) / 3
}

// NewCounter prefers tiktoken and degrades to WordCounter when the encoding
// cannot be loaded, e.g. offline without a cached BPE file.
// The encoding "words" selects WordCounter without trying tiktoken.
func NewCounter(encoding string, logger *slog.Logger) ports.TokenCounter {
	if encoding == WordsEncoding {
		return WordCounter{}
	}
	counter, err := NewTiktokenCounter(encoding)
	if err != nil {
		if logger != nil {
			logger.Warn("tiktoken_unavailable", "encoding", encoding, "error", err)
		}
		return WordCounter{}
	}
	return counter
}
