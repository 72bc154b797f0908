package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/chaintrust/vigil/pkg/chain"
)

// fakeStore returns canned matches per category, optionally failing the
// whole query the way an embedding outage would. The engine queries it
// from several goroutines at once, so the call log is mutex-guarded.
type fakeStore struct {
	results map[Category][]PatternMatch
	err     error

	mu      sync.Mutex
	queries []string
}

func (f *fakeStore) Query(_ context.Context, text string, categories []Category, _ int, threshold float32) (map[Category][]PatternMatch, error) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if categories == nil {
		categories = AllCategories()
	}
	out := make(map[Category][]PatternMatch, len(categories))
	for _, cat := range categories {
		matches := []PatternMatch{}
		for _, m := range f.results[cat] {
			if m.Similarity >= float64(threshold) {
				matches = append(matches, m)
			}
		}
		out[cat] = matches
	}
	return out, nil
}

// queryLog returns a copy of the texts queried so far.
func (f *fakeStore) queryLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// fakeChain returns canned stats per lower-cased address.
type fakeChain struct {
	stats map[string]*chain.WalletStats
	err   error
}

func (f *fakeChain) CollectStats(_ context.Context, address string) (*chain.WalletStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.stats[strings.ToLower(address)]; ok {
		return s, nil
	}
	return &chain.WalletStats{Address: chain.Checksum(address)}, nil
}

// failingEmbedder simulates a provider outage.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider unreachable")
}

func (failingEmbedder) Dimension() int { return 64 }
