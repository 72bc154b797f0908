package patterns

import (
	"testing"
)

func TestRegistryInit(t *testing.T) {
	// Get should return a singleton registry
	r1 := Get()
	r2 := Get()

	if r1 != r2 {
		t.Error("Get() should return the same registry instance")
	}
}

func TestRegistryHasKeywords(t *testing.T) {
	r := Get()

	// 8 urgency + 6 authority + 7 financial + 8 crypto + 8 sim-swap
	total := r.TotalKeywords()
	if total != 37 {
		t.Errorf("expected 37 keywords, got %d", total)
	}

	t.Logf("Registry loaded %d keywords", total)
}

func TestCategoryKeywords(t *testing.T) {
	r := Get()

	testCases := []struct {
		category Category
		count    int
		weight   int
	}{
		{CategoryUrgency, 8, 15},
		{CategoryAuthority, 6, 20},
		{CategoryFinancial, 7, 25},
		{CategoryCryptoSpecific, 8, 30},
		{CategorySIMSwap, 8, 0},
	}

	for _, tc := range testCases {
		t.Run(string(tc.category), func(t *testing.T) {
			keywords := r.GetByCategory(tc.category)
			if len(keywords) != tc.count {
				t.Errorf("category %s: expected %d keywords, got %d",
					tc.category, tc.count, len(keywords))
			}
			for _, k := range keywords {
				if k.Weight != tc.weight {
					t.Errorf("keyword %q: expected weight %d, got %d",
						k.Phrase, tc.weight, k.Weight)
				}
			}
			t.Logf("Category %s: %d keywords at weight %d", tc.category, len(keywords), tc.weight)
		})
	}
}

func TestWeight(t *testing.T) {
	testCases := []struct {
		category Category
		want     int
	}{
		{CategoryUrgency, 15},
		{CategoryAuthority, 20},
		{CategoryFinancial, 25},
		{CategoryCryptoSpecific, 30},
		{CategorySIMSwap, 0},
		{Category("unknown"), 0},
	}

	for _, tc := range testCases {
		if got := Weight(tc.category); got != tc.want {
			t.Errorf("Weight(%s) = %d, want %d", tc.category, got, tc.want)
		}
	}
}

func TestMatchAny(t *testing.T) {
	r := Get()

	testCases := []struct {
		name       string
		text       string
		categories []Category
		wantMatch  bool
	}{
		{
			name:       "urgency phrase",
			text:       "You must act NOW, this offer expires soon",
			categories: []Category{CategoryUrgency},
			wantMatch:  true,
		},
		{
			name:       "authority phrase mixed case",
			text:       "Please VERIFY YOUR ACCOUNT to continue",
			categories: []Category{CategoryAuthority},
			wantMatch:  true,
		},
		{
			name:       "financial phrase",
			text:       "A small transaction fee is required",
			categories: []Category{CategoryFinancial},
			wantMatch:  true,
		},
		{
			name:       "crypto phrase",
			text:       "Enter your seed phrase to restore access",
			categories: []Category{CategoryCryptoSpecific},
			wantMatch:  true,
		},
		{
			name:       "sim swap phrase",
			text:       "We will port your number to the new carrier",
			categories: []Category{CategorySIMSwap},
			wantMatch:  true,
		},
		{
			name:       "benign text",
			text:       "Looking forward to our meeting next Tuesday",
			categories: RedFlagCategories(),
			wantMatch:  false,
		},
		{
			name:       "phrase from a different category",
			text:       "Enter your seed phrase to restore access",
			categories: []Category{CategoryUrgency, CategoryAuthority},
			wantMatch:  false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			match := r.MatchAny(tc.text, tc.categories...)
			gotMatch := match != nil

			if gotMatch != tc.wantMatch {
				if tc.wantMatch {
					t.Errorf("expected match for %q, got none", tc.text)
				} else {
					t.Errorf("expected no match for %q, got %s", tc.text, match.Phrase)
				}
			}

			if match != nil {
				t.Logf("Matched keyword: %s (%s)", match.Phrase, match.Category)
			}
		})
	}
}

func TestMatchAll(t *testing.T) {
	r := Get()

	// Text hitting urgency, authority, and crypto categories
	text := "URGENT: verify your account immediately or lose access. " +
		"Confirm by entering your seed phrase."

	matches := r.MatchAll(text, RedFlagCategories()...)

	want := map[string]bool{
		"urgent":              false,
		"immediately":         false,
		"verify your account": false,
		"seed phrase":         false,
	}
	for _, m := range matches {
		if _, ok := want[m.Phrase]; ok {
			want[m.Phrase] = true
		}
	}
	for phrase, found := range want {
		if !found {
			t.Errorf("expected %q among matches", phrase)
		}
	}

	t.Logf("Found %d keyword matches", len(matches))
	for _, m := range matches {
		t.Logf("  - %s (%s, weight %d)", m.Phrase, m.Category, m.Weight)
	}
}

func TestMatchAllReportsEachKeywordOnce(t *testing.T) {
	r := Get()

	// "urgent" appears three times but should match once
	text := "urgent urgent urgent"

	matches := r.MatchAll(text, CategoryUrgency)
	if len(matches) != 1 {
		t.Errorf("expected 1 match for repeated keyword, got %d", len(matches))
	}
}

// Benchmark for keyword matching performance
func BenchmarkMatchAny(b *testing.B) {
	r := Get()
	text := "Please verify your account immediately to avoid suspension"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.MatchAny(text, CategoryAuthority)
	}
}

func BenchmarkMatchAllRedFlags(b *testing.B) {
	r := Get()
	text := "URGENT: verify your account immediately. A transaction fee is " +
		"required to unlock wallet. Enter your seed phrase now."

	cats := RedFlagCategories()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.MatchAll(text, cats...)
	}
}
