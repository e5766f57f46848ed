package chunker

import "unicode/utf8"

// TokenCounter estimates token counts for budget management.
// The heuristic is ~4 characters per token, rune-based so multibyte text
// does not get overcounted.
type TokenCounter struct {
	charsPerToken float64
}

// NewTokenCounter returns a counter with the default calibration.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{charsPerToken: 4.0}
}

// Count estimates tokens in a string.
func (tc *TokenCounter) Count(s string) int {
	if s == "" {
		return 0
	}
	runeCount := utf8.RuneCountInString(s)
	n := int(float64(runeCount) / tc.charsPerToken)
	if n == 0 {
		n = 1
	}
	return n
}

// RunesForTokens converts a token budget back into an approximate rune
// budget, used when hard-splitting oversized text.
func (tc *TokenCounter) RunesForTokens(tokens int) int {
	return int(float64(tokens) * tc.charsPerToken)
}
