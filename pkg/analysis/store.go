package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
)

// Category labels a pattern corpus partition. Each category gets its own
// vector collection so searches stay scoped to one attack family.
type Category string

const (
	CategorySIMSwapping    Category = "sim_swapping"
	CategoryWalletStalking Category = "wallet_stalking"
	CategorySpoofing       Category = "address_spoofing"
	CategoryPhishing       Category = "general_phishing"
	CategoryTransaction    Category = "transaction_analysis"
)

// AllCategories returns every known category in a stable order.
func AllCategories() []Category {
	return []Category{
		CategorySIMSwapping,
		CategoryWalletStalking,
		CategorySpoofing,
		CategoryPhishing,
		CategoryTransaction,
	}
}

// AttackPattern is one labeled example in the threat corpus.
type AttackPattern struct {
	ID       string   `json:"id" yaml:"id"`
	Category Category `json:"category" yaml:"category"`
	Text     string   `json:"text" yaml:"text"`
	Severity string   `json:"severity" yaml:"severity"`
	Source   string   `json:"source,omitempty" yaml:"source,omitempty"`
	Tactic   string   `json:"tactic,omitempty" yaml:"tactic,omitempty"`
}

// PatternMatch is one nearest-neighbor hit from the corpus.
type PatternMatch struct {
	PatternID  string   `json:"pattern_id"`
	Category   Category `json:"category"`
	Text       string   `json:"text"`
	Severity   string   `json:"severity"`
	Source     string   `json:"source,omitempty"`
	Tactic     string   `json:"tactic,omitempty"`
	Similarity float64  `json:"similarity"`
}

// PatternStore holds the threat corpus in per-category chromem
// collections and answers similarity queries against them.
type PatternStore struct {
	db          *chromem.DB
	collections map[Category]*chromem.Collection
	embedder    Embedder
	patterns    []AttackPattern
	mu          sync.RWMutex
	ready       bool
}

// NewPatternStore creates an empty in-memory store backed by the given
// embedder. Call Seed before querying.
func NewPatternStore(embedder Embedder) (*PatternStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	db := chromem.NewDB()
	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}

	collections := make(map[Category]*chromem.Collection, len(AllCategories()))
	for _, cat := range AllCategories() {
		col, err := db.CreateCollection(string(cat)+"_patterns", nil, embedFunc)
		if err != nil {
			return nil, fmt.Errorf("failed to create collection for %s: %w", cat, err)
		}
		collections[cat] = col
	}

	return &PatternStore{
		db:          db,
		collections: collections,
		embedder:    embedder,
	}, nil
}

// Seed loads patterns into their category collections. Patterns with an
// unknown category are skipped with a warning rather than failing the
// whole load.
func (s *PatternStore) Seed(ctx context.Context, patterns []AttackPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCategory := make(map[Category][]chromem.Document)
	for _, p := range patterns {
		if _, ok := s.collections[p.Category]; !ok {
			log.Printf("[WARN] Skipping pattern %s: unknown category %q", p.ID, p.Category)
			continue
		}
		byCategory[p.Category] = append(byCategory[p.Category], chromem.Document{
			ID:      p.ID,
			Content: p.Text,
			Metadata: map[string]string{
				"category": string(p.Category),
				"severity": p.Severity,
				"source":   p.Source,
				"tactic":   p.Tactic,
			},
		})
		s.patterns = append(s.patterns, p)
	}

	for cat, docs := range byCategory {
		if err := s.collections[cat].AddDocuments(ctx, docs, 1); err != nil {
			return fmt.Errorf("failed to seed %s patterns: %w", cat, err)
		}
	}

	s.ready = true
	log.Printf("[PATTERNS] Seeded %d patterns across %d categories", len(s.patterns), len(byCategory))
	return nil
}

// Query embeds the text once and searches the requested categories. A
// nil categories slice searches all of them. Per-category search
// failures degrade to an empty result for that category; the only error
// returned is failure to embed the query itself.
func (s *PatternStore) Query(ctx context.Context, text string, categories []Category, limit int, threshold float32) (map[Category][]PatternMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}
	if categories == nil {
		categories = AllCategories()
	}

	queryEmb, err := s.embedder.Embed(ctx, strings.ToLower(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results := make(map[Category][]PatternMatch, len(categories))
	for _, cat := range categories {
		col, ok := s.collections[cat]
		if !ok {
			log.Printf("[WARN] Unknown query category %q", cat)
			results[cat] = []PatternMatch{}
			continue
		}

		// chromem errors if nResults exceeds the collection size
		n := limit
		if count := col.Count(); count < n {
			n = count
		}
		if n == 0 {
			results[cat] = []PatternMatch{}
			continue
		}

		hits, err := col.QueryEmbedding(ctx, queryEmb, n, nil, nil)
		if err != nil {
			log.Printf("[WARN] Pattern search failed for %s: %v", cat, err)
			results[cat] = []PatternMatch{}
			continue
		}

		matches := make([]PatternMatch, 0, len(hits))
		for _, hit := range hits {
			if hit.Similarity < threshold {
				continue
			}
			matches = append(matches, PatternMatch{
				PatternID:  hit.ID,
				Category:   cat,
				Text:       hit.Content,
				Severity:   hit.Metadata["severity"],
				Source:     hit.Metadata["source"],
				Tactic:     hit.Metadata["tactic"],
				Similarity: float64(hit.Similarity),
			})
		}
		results[cat] = matches
	}

	return results, nil
}

// Patterns returns a copy of every seeded pattern.
func (s *PatternStore) Patterns() []AttackPattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AttackPattern, len(s.patterns))
	copy(out, s.patterns)
	return out
}

// Counts returns the number of stored patterns per category.
func (s *PatternStore) Counts() map[Category]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Category]int, len(s.collections))
	for cat, col := range s.collections {
		counts[cat] = col.Count()
	}
	return counts
}

// IsReady reports whether the store has been seeded.
func (s *PatternStore) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}
