package analysis

import (
	"testing"

	"github.com/chaintrust/vigil/pkg/patterns"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "URGENT Action Required", "urgent action required"},
		{"folds fullwidth", "ｕｒｇｅｎｔ", "urgent"},
		{"plain text untouched", "send funds now", "send funds now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.in); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDetectRedFlags(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		wantCategories []patterns.Category
	}{
		{
			name:           "urgency only",
			text:           "Act now, this offer expires soon!",
			wantCategories: []patterns.Category{patterns.CategoryUrgency},
		},
		{
			name:           "authority and crypto",
			text:           "Security check required: enter your seed phrase to continue",
			wantCategories: []patterns.Category{patterns.CategoryAuthority, patterns.CategoryCryptoSpecific},
		},
		{
			name:           "evasion via fullwidth characters",
			text:           "ｕｒｇｅｎｔ: verify your account",
			wantCategories: []patterns.Category{patterns.CategoryUrgency, patterns.CategoryAuthority},
		},
		{
			name:           "benign message",
			text:           "See you at the meetup on Thursday",
			wantCategories: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := DetectRedFlags(tt.text)

			got := make(map[patterns.Category]bool)
			for _, h := range hits {
				got[h.Category] = true
				if len(h.Keywords) == 0 {
					t.Errorf("category %s fired with no keywords", h.Category)
				}
			}
			if len(got) != len(tt.wantCategories) {
				t.Fatalf("fired categories = %v, want %v", hits, tt.wantCategories)
			}
			for _, want := range tt.wantCategories {
				if !got[want] {
					t.Errorf("category %s did not fire", want)
				}
			}
		})
	}
}

func TestRedFlagScore(t *testing.T) {
	tests := []struct {
		name string
		hits []RedFlagHit
		want float64
	}{
		{"no hits", nil, 0},
		{
			"single urgency keyword",
			[]RedFlagHit{{Category: patterns.CategoryUrgency, Keywords: []string{"urgent"}, Weight: 15}},
			15,
		},
		{
			"mixed categories",
			[]RedFlagHit{
				{Category: patterns.CategoryUrgency, Keywords: []string{"urgent", "act now"}, Weight: 15},
				{Category: patterns.CategoryCryptoSpecific, Keywords: []string{"seed phrase"}, Weight: 30},
			},
			60,
		},
		{
			"clamped at 100",
			[]RedFlagHit{
				{Category: patterns.CategoryCryptoSpecific, Keywords: []string{"seed phrase", "private key", "mnemonic", "gas fee"}, Weight: 30},
			},
			100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedFlagScore(tt.hits); got != tt.want {
				t.Errorf("RedFlagScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectRedFlagsScoreEndToEnd(t *testing.T) {
	// "urgent" (15) + "verify your account" (20) + "seed phrase" (30)
	text := "URGENT: verify your account and confirm your seed phrase"
	score := RedFlagScore(DetectRedFlags(text))
	if score != 65 {
		t.Errorf("score = %v, want 65", score)
	}
}

func BenchmarkDetectRedFlags(b *testing.B) {
	text := "URGENT: your account has been suspended. Verify your account and send funds to unlock your wallet. Never share your seed phrase."
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DetectRedFlags(text)
	}
}
