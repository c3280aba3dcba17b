package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/ports"
)

const (
	DefaultMaxLength = 1000
	MaxMaxLength     = 100000
)

const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// TextOptions are the options shared by every text operation.
type TextOptions struct {
	Text              string
	Language          string
	Format            string
	Encoding          string
	MaxLength         int
	PreserveSpaces    bool
	RemovePunctuation bool
	AddTimestamp      bool
	CustomDelimiter   string
	Tokenizer         string
	Metadata          map[string]any
}

// ParseTextOptions reads text options from input, applying defaults.
func ParseTextOptions(input map[string]any) (*TextOptions, error) {
	p := Params(input)

	text, err := p.String("text", "")
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, domain.ErrValidation("text is required").WithField("text")
	}

	opts := &TextOptions{Text: text}
	if opts.Language, err = p.String("language", "en"); err != nil {
		return nil, err
	}
	if opts.Format, err = p.String("format", "plain"); err != nil {
		return nil, err
	}
	if opts.Encoding, err = p.String("encoding", "utf-8"); err != nil {
		return nil, err
	}
	if opts.MaxLength, err = p.Int("max_length", DefaultMaxLength, 1, MaxMaxLength); err != nil {
		return nil, err
	}
	if opts.PreserveSpaces, err = p.Bool("preserve_spaces", true); err != nil {
		return nil, err
	}
	if opts.RemovePunctuation, err = p.Bool("remove_punctuation", false); err != nil {
		return nil, err
	}
	if opts.AddTimestamp, err = p.Bool("add_timestamp", false); err != nil {
		return nil, err
	}
	if opts.CustomDelimiter, err = p.String("custom_delimiter", " "); err != nil {
		return nil, err
	}
	if opts.Tokenizer, err = p.String("tokenizer", DefaultTokenizer); err != nil {
		return nil, err
	}
	if opts.Metadata, err = p.Map("metadata"); err != nil {
		return nil, err
	}
	return opts, nil
}

// TextFunc transforms text for one operation.
type TextFunc func(ctx context.Context, text string, opts *TextOptions) (string, error)

// TextProcessor runs a TextFunc inside the shared option handling:
// punctuation removal before, truncation and timestamping after.
type TextProcessor struct {
	name  string
	apply TextFunc
	now   func() time.Time
}

// NewTextProcessor creates a text operation named name.
func NewTextProcessor(name string, apply TextFunc) *TextProcessor {
	return &TextProcessor{name: name, apply: apply, now: time.Now}
}

func (p *TextProcessor) Name() string { return p.name }

// Apply runs only the operation itself, without pre/post processing.
func (p *TextProcessor) Apply(ctx context.Context, text string, opts *TextOptions) (string, error) {
	return p.apply(ctx, text, opts)
}

func (p *TextProcessor) Process(ctx context.Context, exec *ports.Execution) ([]domain.Output, error) {
	opts, err := ParseTextOptions(exec.Input)
	if err != nil {
		return nil, err
	}

	text := prepare(opts)
	processed, err := p.apply(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	processed = finish(processed, opts, p.now())

	return []domain.Output{{Data: textResult(p.name, processed, opts)}}, nil
}

func prepare(opts *TextOptions) string {
	if !opts.RemovePunctuation {
		return opts.Text
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(asciiPunctuation, r) {
			return -1
		}
		return r
	}, opts.Text)
}

func finish(text string, opts *TextOptions, now time.Time) string {
	text = truncateRunes(text, opts.MaxLength)
	if opts.AddTimestamp {
		text = fmt.Sprintf("[%s] %s", now.UTC().Format(time.RFC3339), text)
	}
	return text
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func textResult(operation, processed string, opts *TextOptions) map[string]any {
	return map[string]any{
		"original_text":  opts.Text,
		"processed_text": processed,
		"operation":      operation,
		"language":       opts.Language,
		"format":         opts.Format,
		"encoding":       opts.Encoding,
		"length":         utf8.RuneCountInString(processed),
		"metadata":       opts.Metadata,
		"processing_options": map[string]any{
			"max_length":         opts.MaxLength,
			"preserve_spaces":    opts.PreserveSpaces,
			"remove_punctuation": opts.RemovePunctuation,
			"add_timestamp":      opts.AddTimestamp,
			"custom_delimiter":   opts.CustomDelimiter,
		},
	}
}

var _ ports.Processor = (*TextProcessor)(nil)
