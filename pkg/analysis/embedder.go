package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chaintrust/vigil/pkg/httputil"
)

// OpenRouterEmbedder implements Embedder against any OpenAI-compatible
// embeddings endpoint (OpenRouter by default).
type OpenRouterEmbedder struct {
	apiKey     string
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	sem        *httputil.Semaphore
	mu         sync.RWMutex

	// Rate limiting
	lastRequest time.Time
	minInterval time.Duration

	// Stats
	totalCalls   int64
	totalTokens  int64
	totalLatency time.Duration
}

// OpenRouterEmbedderConfig configures the HTTP embedder.
type OpenRouterEmbedderConfig struct {
	APIKey    string // API key (defaults to OPENROUTER_API_KEY env)
	BaseURL   string // API base URL (defaults to https://openrouter.ai/api/v1)
	Model     string // Model name (defaults to qwen/qwen3-embedding-4b)
	Dimension int    // Embedding dimension (defaults to 1024, max 2048 for Qwen3)
}

// NewOpenRouterEmbedder creates a new OpenRouter-based embedder.
func NewOpenRouterEmbedder(cfg OpenRouterEmbedderConfig) (*OpenRouterEmbedder, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key not configured (set OPENROUTER_API_KEY)")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen/qwen3-embedding-4b"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1024
	}
	if cfg.Dimension > 2048 {
		cfg.Dimension = 2048 // Qwen3 max
	}

	embedder := &OpenRouterEmbedder{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		dimension:   cfg.Dimension,
		httpClient:  httputil.MediumClient(),  // Shared client with connection pooling (30s timeout)
		sem:         httputil.NewSemaphore(8), // Cap concurrent upstream calls
		minInterval: 50 * time.Millisecond,    // Rate limit: max 20 req/sec
	}

	log.Printf("[EMBEDDER] OpenRouter initialized: model=%s, dim=%d", cfg.Model, cfg.Dimension)
	return embedder, nil
}

// embeddingRequest is the OpenAI-compatible embedding request format.
type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"` // For models that support matryoshka
}

// embeddingResponse is the OpenAI-compatible embedding response format.
type embeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed generates an embedding for a single text.
func (e *OpenRouterEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *OpenRouterEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Bound concurrent upstream requests
	if err := e.sem.Acquire(ctx); err != nil {
		return nil, err
	}
	defer e.sem.Release()

	// Rate limiting
	e.mu.Lock()
	elapsed := time.Since(e.lastRequest)
	if elapsed < e.minInterval {
		time.Sleep(e.minInterval - elapsed)
	}
	e.lastRequest = time.Now()
	e.mu.Unlock()

	start := time.Now()

	reqBody := embeddingRequest{
		Model:      e.model,
		Input:      texts,
		Dimensions: e.dimension,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := e.postWithRetry(ctx, reqBytes)
	if err != nil {
		return nil, err
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Convert to float32 and unit-normalize so cosine reduces to dot product
	result := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index >= len(texts) {
			continue
		}
		embedding := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			embedding[i] = float32(v)
		}
		normalize(embedding)
		result[data.Index] = embedding
	}

	// Update stats
	e.mu.Lock()
	e.totalCalls++
	e.totalTokens += int64(embResp.Usage.TotalTokens)
	e.totalLatency += time.Since(start)
	e.mu.Unlock()

	return result, nil
}

// postWithRetry sends the embedding request, retrying rate-limit and
// upstream errors with exponential backoff.
func (e *OpenRouterEmbedder) postWithRetry(ctx context.Context, payload []byte) ([]byte, error) {
	const maxAttempts = 3
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embeddings", bytes.NewBuffer(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
		req.Header.Set("HTTP-Referer", "https://vigil.chaintrust.io") // OpenRouter requires this
		req.Header.Set("X-Title", "Vigil Threat Analysis")

		resp, err := e.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("embedding request failed: %w", err)
			continue
		}

		// Read response with bounded size to prevent OOM
		body, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
		httputil.DrainAndClose(resp.Body)
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("embedding API error (status %d): %s", resp.StatusCode, string(body))
			continue
		default:
			// Client errors are not retryable
			return nil, fmt.Errorf("embedding API error (status %d): %s", resp.StatusCode, string(body))
		}
	}
	return nil, lastErr
}

// Dimension returns the embedding dimension.
func (e *OpenRouterEmbedder) Dimension() int {
	return e.dimension
}

// Stats returns embedder statistics.
func (e *OpenRouterEmbedder) Stats() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	avgLatency := time.Duration(0)
	if e.totalCalls > 0 {
		avgLatency = e.totalLatency / time.Duration(e.totalCalls)
	}

	return map[string]any{
		"model":           e.model,
		"dimension":       e.dimension,
		"total_calls":     e.totalCalls,
		"total_tokens":    e.totalTokens,
		"avg_latency_ms":  avgLatency.Milliseconds(),
		"total_latency_s": e.totalLatency.Seconds(),
	}
}

// =============================================================================
// HashEmbedder: deterministic offline embeddings
// =============================================================================

// HashEmbedder produces deterministic bag-of-words vectors by hashing
// tokens into buckets. Overlapping vocabulary yields proportional cosine
// similarity, which keeps the pattern store meaningful offline and in
// tests without any model or network access.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hash-based embedder.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 1024
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed returns a unit-normalized token-bucket vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimension)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum64()%uint64(e.dimension)]++
	}
	// Empty input still needs a valid unit vector
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		vec[0] = 1
		return vec, nil
	}
	normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		result[i] = vec
	}
	return result, nil
}

// Dimension returns the embedding dimension.
func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

// normalize scales a vector to unit length in place. Zero vectors are
// left untouched.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}

// cosineSimilarity computes the cosine of the angle between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// =============================================================================
// Factory function for creating embedders
// =============================================================================

// EmbedderConfig holds configuration for creating an embedder.
type EmbedderConfig struct {
	Provider  string // "openrouter", "openai", "local", "hash"
	APIKey    string // API key for cloud providers
	Model     string // Model name
	Dimension int    // Embedding dimension
	BaseURL   string // Custom API URL
}

// NewEmbedder creates an Embedder based on configuration. Unknown or
// unavailable providers fall back to the deterministic hash embedder so
// the pattern store always has a working embedding source.
func NewEmbedder(cfg EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openrouter", "":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
		}
		if cfg.APIKey != "" {
			return NewOpenRouterEmbedder(OpenRouterEmbedderConfig{
				APIKey:    cfg.APIKey,
				Model:     cfg.Model,
				Dimension: cfg.Dimension,
				BaseURL:   cfg.BaseURL,
			})
		}
		log.Printf("[EMBEDDER] No API key configured, using hash embedder")
		return NewHashEmbedder(cfg.Dimension), nil

	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return NewOpenRouterEmbedder(OpenRouterEmbedderConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			BaseURL:   baseURL,
		})

	case "local":
		local := NewLocalEmbedderWithFallback(LocalEmbedderConfig{
			ModelPath: os.Getenv("VIGIL_LOCAL_MODEL_PATH"),
			Dimension: cfg.Dimension,
		})
		if local.IsReady() {
			return local, nil
		}
		log.Printf("[EMBEDDER] Local ONNX embedder unavailable, using hash embedder")
		return NewHashEmbedder(cfg.Dimension), nil

	case "hash", "none", "noop":
		return NewHashEmbedder(cfg.Dimension), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
