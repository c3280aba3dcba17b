package engine

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Transforms returns the transform family: uppercase, lowercase, reverse,
// title, capitalize and strip.
func Transforms() []*TextProcessor {
	return []*TextProcessor{
		NewTextProcessor("uppercase", pure(strings.ToUpper)),
		NewTextProcessor("lowercase", pure(strings.ToLower)),
		NewTextProcessor("reverse", pure(reverse)),
		NewTextProcessor("title", pure(title)),
		NewTextProcessor("capitalize", pure(capitalize)),
		NewTextProcessor("strip", pure(strings.TrimSpace)),
	}
}

func pure(fn func(string) string) TextFunc {
	return func(_ context.Context, text string, _ *TextOptions) (string, error) {
		return fn(text), nil
	}
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// title upper-cases a letter that follows a non-letter and lower-cases the
// rest.
func title(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if prevLetter {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToUpper(r))
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
