package analysis

import (
	"regexp"
	"strings"
)

// addressPattern matches 20-byte hex addresses in free text
var addressPattern = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)

// ExtractAddresses returns every well-formed address found in the text,
// in order of appearance, duplicates preserved.
func ExtractAddresses(text string) []string {
	return addressPattern.FindAllString(text, -1)
}

// AddressSimilarity scores how visually close two addresses are on a
// 0..1 scale. Character-positional comparison over the 40 hex digits,
// case-insensitive, with a floor of 0.7 when both the 6-character
// prefix and 4-character suffix match, since spoofers count on wallets
// eliding the middle of the address.
func AddressSimilarity(a, b string) float64 {
	a = strings.TrimPrefix(strings.ToLower(a), "0x")
	b = strings.TrimPrefix(strings.ToLower(b), "0x")

	if len(a) != 40 || len(b) != 40 {
		return 0
	}

	matching := 0
	for i := 0; i < 40; i++ {
		if a[i] == b[i] {
			matching++
		}
	}
	ratio := float64(matching) / 40

	if a[:6] == b[:6] && a[36:] == b[36:] {
		if ratio < 0.7 {
			return 0.7
		}
	}
	return ratio
}

// AddressSimilarityResult reports one suspiciously-similar address pair.
type AddressSimilarityResult struct {
	Address    string  `json:"address"`
	SimilarTo  string  `json:"similar_to"`
	Similarity float64 `json:"similarity"`
	RiskLevel  string  `json:"risk_level"`
}

// CompareAgainstKnown checks every found address against the user's
// known addresses. Exact matches are the user's own address and are
// skipped; pairs scoring above 0.6 are reported, graded HIGH above 0.8
// and MEDIUM otherwise.
func CompareAgainstKnown(found, known []string) []AddressSimilarityResult {
	var results []AddressSimilarityResult
	for _, addr := range found {
		for _, knownAddr := range known {
			if strings.EqualFold(addr, knownAddr) {
				continue
			}
			sim := AddressSimilarity(addr, knownAddr)
			if sim <= 0.6 {
				continue
			}
			risk := "MEDIUM"
			if sim > 0.8 {
				risk = "HIGH"
			}
			results = append(results, AddressSimilarityResult{
				Address:    addr,
				SimilarTo:  knownAddr,
				Similarity: sim,
				RiskLevel:  risk,
			})
		}
	}
	return results
}
