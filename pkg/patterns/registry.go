// Package patterns provides a centralized keyword registry for
// social-engineering detection. All keyword tables are built once at first
// use and shared across detectors and the scoring engine.
//
// Design principles:
// - BUILD ONCE: Tables are constructed at first access, not per-request
// - DRY: Single source of truth for red-flag and detector keyword lists
// - CATEGORIZED: Keywords organized by category for targeted scans
// - EXTENSIBLE: Adding a category is a code change, keeping weights auditable
package patterns

import (
	"strings"
	"sync"
)

// Category represents a keyword category
type Category string

const (
	// Red-flag categories scored by the heuristic rule engine
	CategoryUrgency        Category = "urgency"
	CategoryAuthority      Category = "authority"
	CategoryFinancial      Category = "financial"
	CategoryCryptoSpecific Category = "crypto_specific"

	// Detector-specific categories (not part of red-flag scoring)
	CategorySIMSwap Category = "sim_swap"
)

// RedFlagCategories lists the categories that contribute to the heuristic
// red-flag score, in a fixed order so results are deterministic.
func RedFlagCategories() []Category {
	return []Category{
		CategoryUrgency,
		CategoryAuthority,
		CategoryFinancial,
		CategoryCryptoSpecific,
	}
}

// Keyword holds a lower-cased phrase with metadata
type Keyword struct {
	Phrase   string   // Lower-cased phrase matched as a substring
	Category Category // Keyword category
	Weight   int      // Score contribution per distinct match (0-100)
}

// Registry holds all keyword tables, organized by category
type Registry struct {
	mu         sync.RWMutex
	byCategory map[Category][]*Keyword
	all        []*Keyword
}

// global singleton - initialized once at first access
var (
	globalRegistry *Registry
	initOnce       sync.Once
)

// Get returns the global keyword registry (singleton).
// Thread-safe and guaranteed to be initialized.
func Get() *Registry {
	initOnce.Do(func() {
		globalRegistry = newRegistry()
	})
	return globalRegistry
}

// newRegistry creates and populates the keyword registry
func newRegistry() *Registry {
	r := &Registry{
		byCategory: make(map[Category][]*Keyword),
		all:        make([]*Keyword, 0, 64),
	}

	r.registerUrgencyKeywords()
	r.registerAuthorityKeywords()
	r.registerFinancialKeywords()
	r.registerCryptoKeywords()
	r.registerSIMSwapKeywords()

	return r
}

// register adds a keyword to the registry (internal use only)
func (r *Registry) register(phrase string, category Category, weight int) {
	k := &Keyword{
		Phrase:   strings.ToLower(phrase),
		Category: category,
		Weight:   weight,
	}
	r.byCategory[category] = append(r.byCategory[category], k)
	r.all = append(r.all, k)
}

// GetByCategory returns all keywords for a specific category.
// Returns empty slice if category not found (never nil).
func (r *Registry) GetByCategory(cat Category) []*Keyword {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if keywords, ok := r.byCategory[cat]; ok {
		return keywords
	}
	return []*Keyword{}
}

// MatchAny checks if lower-cased text contains any keyword in the given
// categories. Returns the first matching keyword or nil. Optimized for
// early exit on first match.
func (r *Registry) MatchAny(text string, cats ...Category) *Keyword {
	lower := strings.ToLower(text)
	for _, cat := range cats {
		for _, k := range r.GetByCategory(cat) {
			if strings.Contains(lower, k.Phrase) {
				return k
			}
		}
	}
	return nil
}

// MatchAll returns every keyword present in the text for the given
// categories. Each keyword is reported at most once regardless of how many
// times it recurs in the text.
func (r *Registry) MatchAll(text string, cats ...Category) []*Keyword {
	lower := strings.ToLower(text)
	var matches []*Keyword
	for _, cat := range cats {
		for _, k := range r.GetByCategory(cat) {
			if strings.Contains(lower, k.Phrase) {
				matches = append(matches, k)
			}
		}
	}
	return matches
}

// TotalKeywords returns the total count of registered keywords
func (r *Registry) TotalKeywords() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// CategoryCount returns the number of keywords in a category
func (r *Registry) CategoryCount(cat Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCategory[cat])
}
