package analysis

import (
	"context"

	"github.com/chaintrust/vigil/pkg/chain"
)

// Embedder converts text into a fixed-length unit-normalized vector.
// Deterministic per model version so cosine similarity reduces to dot
// product against stored pattern vectors.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector dimension, shared with the pattern store.
	Dimension() int
}

// BatchEmbedder is implemented by embedders that support batch requests.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// PatternSearcher is the nearest-neighbor collaborator over the labeled
// pattern corpus. A nil categories slice searches all known categories.
// Per-category failures degrade to an empty slice for that category; the
// only error returned is failure to embed the query itself.
type PatternSearcher interface {
	Query(ctx context.Context, text string, categories []Category, limit int, threshold float32) (map[Category][]PatternMatch, error)
}

// ChainReader is the blockchain RPC collaborator consumed by wallet
// analysis. Implemented by chain.Client; tests substitute fakes.
type ChainReader interface {
	CollectStats(ctx context.Context, address string) (*chain.WalletStats, error)
}
