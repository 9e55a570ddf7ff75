package domain

import (
	"fmt"
	"strings"
)

// Language is an article output language.
type Language string

// Supported article languages.
const (
	English Language = "English"
	Spanish Language = "Spanish"
	French  Language = "French"
	German  Language = "German"
	Italian Language = "Italian"
)

// Languages lists the supported languages in display order.
var Languages = []Language{English, Spanish, French, German, Italian}

// Word count bounds for generated articles.
const (
	MinWordCount     = 100
	MaxWordCount     = 2000
	DefaultWordCount = 800
)

// ParseLanguage resolves a language name case-insensitively.
func ParseLanguage(s string) (Language, error) {
	for _, l := range Languages {
		if strings.EqualFold(strings.TrimSpace(s), string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidLanguage)
}

// ValidateWordCount checks n against MinWordCount..MaxWordCount.
func ValidateWordCount(n int) error {
	if n < MinWordCount || n > MaxWordCount {
		return fmt.Errorf("%d not in %d..%d: %w", n, MinWordCount, MaxWordCount, ErrInvalidWordCount)
	}
	return nil
}
