// Package similarity scores string closeness for the fuzzy matching tier.
package similarity

import (
	"github.com/fTr0ut/shelvesai/internal/fingerprint"
)

// Trigram returns the Jaccard overlap of the rune-trigram sets of a and b,
// computed over the normalized forms. Strings shorter than three runes
// contribute themselves as a single token. The metric tolerates OCR and
// transliteration noise better than exact or prefix comparison.
func Trigram(a, b string) float64 {
	left := trigramSet(a)
	right := trigramSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	intersection := 0
	for t := range left {
		if _, ok := right[t]; ok {
			intersection++
		}
	}
	if intersection == 0 {
		return 0
	}

	union := len(left) + len(right) - intersection
	return float64(intersection) / float64(union)
}

func trigramSet(text string) map[string]struct{} {
	normalized := fingerprint.Normalize(text)
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	if len(runes) < 3 {
		return map[string]struct{}{string(runes): {}}
	}

	set := make(map[string]struct{}, len(runes)-2)
	for i := 0; i <= len(runes)-3; i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}
