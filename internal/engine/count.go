package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
)

// DefaultTokenizer is the encoding used by token_count when none is given.
const DefaultTokenizer = string(tokenizer.Cl100kBase)

// Counts returns the count family: word_count, char_count and token_count.
// The processed text of a count is the decimal count.
func Counts() []*TextProcessor {
	tokens := newTokenCounter()
	return []*TextProcessor{
		NewTextProcessor("word_count", pure(func(s string) string {
			return strconv.Itoa(len(strings.Fields(s)))
		})),
		NewTextProcessor("char_count", pure(func(s string) string {
			return strconv.Itoa(utf8.RuneCountInString(s))
		})),
		NewTextProcessor("token_count", tokens.count),
	}
}

// tokenCounter caches tokenizer codecs by name.
type tokenCounter struct {
	mu     sync.RWMutex
	codecs map[string]tokenizer.Codec
}

func newTokenCounter() *tokenCounter {
	return &tokenCounter{codecs: make(map[string]tokenizer.Codec)}
}

func (c *tokenCounter) count(_ context.Context, text string, opts *TextOptions) (string, error) {
	codec, err := c.codec(opts.Tokenizer)
	if err != nil {
		return "", err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return "", fmt.Errorf("encode text: %w", err)
	}
	return strconv.Itoa(len(ids)), nil
}

// codec resolves name as an encoding first, then as a model name.
func (c *tokenCounter) codec(name string) (tokenizer.Codec, error) {
	if name == "" {
		name = DefaultTokenizer
	}

	c.mu.RLock()
	if cached, ok := c.codecs[name]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	codec, err := tokenizer.Get(tokenizer.Encoding(name))
	if err != nil {
		codec, err = tokenizer.ForModel(tokenizer.Model(name))
		if err != nil {
			return nil, domain.ErrValidation(fmt.Sprintf("unsupported tokenizer %q", name)).WithField("tokenizer")
		}
	}

	c.mu.Lock()
	c.codecs[name] = codec
	c.mu.Unlock()
	return codec, nil
}
