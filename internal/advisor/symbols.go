package advisor

import (
	"strings"

	"crypto-herald/internal/domain"
)

var goldWords = map[string]bool{
	"OR": true, "GOLD": true, "XAU": true, "MÉTAL": true, "METAL": true, "ONCE": true,
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == 'É')
	})
}

// ExtractSymbols scans the question for tracked crypto symbols.
// Returns deduplicated uppercase symbols in order of appearance.
func ExtractSymbols(text string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, w := range words(text) {
		if _, ok := domain.CoinGeckoID[w]; ok && !seen[w] {
			seen[w] = true
			result = append(result, w)
		}
	}
	return result
}

// MentionsGold reports whether the question is about gold. Only whole
// words count, so "pour" does not match "or".
func MentionsGold(text string) bool {
	for _, w := range words(text) {
		if goldWords[w] {
			return true
		}
	}
	return false
}
