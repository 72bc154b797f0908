package analysis

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/chaintrust/vigil/pkg/patterns"
)

// RedFlagHit is one keyword category that fired, with the phrases that
// triggered it.
type RedFlagHit struct {
	Category patterns.Category `json:"category"`
	Keywords []string          `json:"keywords"`
	Weight   int               `json:"weight"`
}

// NormalizeText canonicalizes input before keyword matching. NFKC folds
// fullwidth and compatibility forms that attackers use to dodge
// substring checks, then lowercases.
func NormalizeText(text string) string {
	return strings.ToLower(norm.NFKC.String(text))
}

// DetectRedFlags scans the text for manipulation keywords across the
// scored categories, reporting each matched phrase at most once per
// category.
func DetectRedFlags(text string) []RedFlagHit {
	normalized := NormalizeText(text)
	registry := patterns.Get()

	var hits []RedFlagHit
	for _, cat := range patterns.RedFlagCategories() {
		matched := registry.MatchAll(normalized, cat)
		if len(matched) == 0 {
			continue
		}
		phrases := make([]string, len(matched))
		for i, k := range matched {
			phrases[i] = k.Phrase
		}
		hits = append(hits, RedFlagHit{
			Category: cat,
			Keywords: phrases,
			Weight:   patterns.Weight(cat),
		})
	}
	return hits
}

// RedFlagScore converts keyword hits into a 0-100 score: each distinct
// matched phrase contributes its category weight, capped at 100.
func RedFlagScore(hits []RedFlagHit) float64 {
	score := 0.0
	for _, hit := range hits {
		score += float64(len(hit.Keywords) * hit.Weight)
	}
	if score > 100 {
		score = 100
	}
	return score
}
