package analysis

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"
)

// LocalEmbedder generates embeddings with a local ONNX sentence
// transformer via Hugot. No network access at inference time.
type LocalEmbedder struct {
	config   LocalEmbedderConfig
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	mu       sync.RWMutex
	ready    bool
}

// LocalEmbedderConfig configures the local ONNX embedder.
type LocalEmbedderConfig struct {
	// ModelPath is the local directory containing the ONNX model
	ModelPath string

	// ModelName is a HuggingFace model to download when ModelPath is
	// missing (e.g. "sentence-transformers/all-MiniLM-L6-v2")
	ModelName string

	// OnnxLibraryPath points at the ONNX Runtime shared library.
	// Empty means use the pure Go backend.
	OnnxLibraryPath string

	// Dimension of the model's output vectors
	Dimension int
}

// NewLocalEmbedder creates and initializes a local embedder.
func NewLocalEmbedder(cfg LocalEmbedderConfig) (*LocalEmbedder, error) {
	if cfg.Dimension <= 0 {
		cfg.Dimension = 384 // all-MiniLM-L6-v2
	}
	if cfg.OnnxLibraryPath == "" {
		cfg.OnnxLibraryPath = defaultOnnxLibraryPath()
	}

	e := &LocalEmbedder{config: cfg}
	if err := e.initialize(); err != nil {
		return nil, fmt.Errorf("local embedder initialization failed: %w", err)
	}
	return e, nil
}

// NewLocalEmbedderWithFallback creates a local embedder that gracefully
// degrades on failure. Returns an instance even if initialization fails
// (ready=false); callers check IsReady before relying on it.
func NewLocalEmbedderWithFallback(cfg LocalEmbedderConfig) *LocalEmbedder {
	e, err := NewLocalEmbedder(cfg)
	if err != nil {
		log.Printf("WARNING: local embedder initialization failed (graceful degradation): %v", err)
		return &LocalEmbedder{config: cfg, ready: false}
	}
	return e
}

func (e *LocalEmbedder) initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.createSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	e.session = session

	modelPath, err := e.resolveModelPath()
	if err != nil {
		_ = e.session.Destroy()
		return fmt.Errorf("failed to resolve model path: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "vigil-embedder",
	}

	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		_ = e.session.Destroy()
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	e.pipeline = pipeline
	e.ready = true
	log.Printf("Local embedder initialized (model: %s)", modelPath)
	return nil
}

// createSession tries the ONNX Runtime backend first, then the pure Go
// backend.
func (e *LocalEmbedder) createSession() (*hugot.Session, error) {
	if e.config.OnnxLibraryPath != "" {
		session, err := hugot.NewORTSession(
			options.WithOnnxLibraryPath(e.config.OnnxLibraryPath),
		)
		if err == nil {
			log.Printf("Local embedder using ONNX Runtime backend")
			return session, nil
		}
		log.Printf("ONNX Runtime unavailable, falling back to Go backend: %v", err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Go session: %w", err)
	}
	log.Printf("Local embedder using pure Go backend")
	return session, nil
}

func (e *LocalEmbedder) resolveModelPath() (string, error) {
	if e.config.ModelPath != "" {
		if _, err := os.Stat(e.config.ModelPath); err == nil {
			return e.config.ModelPath, nil
		}
	}

	if e.config.ModelName == "" {
		return "", fmt.Errorf("no model path or name specified")
	}

	modelsDir := "./models"
	if err := os.MkdirAll(modelsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create models directory: %w", err)
	}

	log.Printf("Downloading model %s...", e.config.ModelName)
	modelPath, err := hugot.DownloadModel(e.config.ModelName, modelsDir, hugot.NewDownloadOptions())
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}
	return modelPath, nil
}

// defaultOnnxLibraryPath checks common install locations for the ONNX
// Runtime shared library.
func defaultOnnxLibraryPath() string {
	paths := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.dylib",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Dir(p)
		}
	}
	return ""
}

// IsReady reports whether the embedder initialized successfully.
func (e *LocalEmbedder) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// Embed generates an embedding for a single text.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch runs the feature-extraction pipeline over a batch of texts.
func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.ready || e.pipeline == nil {
		return nil, fmt.Errorf("local embedder not ready")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output, err := e.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("embedding inference failed: %w", err)
	}
	if len(output.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(output.Embeddings), len(texts))
	}

	result := make([][]float32, len(texts))
	for i, emb := range output.Embeddings {
		vec := make([]float32, len(emb))
		copy(vec, emb)
		normalize(vec)
		result[i] = vec
	}
	return result, nil
}

// Dimension returns the embedding dimension.
func (e *LocalEmbedder) Dimension() int {
	return e.config.Dimension
}

// Close releases the ONNX session.
func (e *LocalEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
		e.session = nil
	}
	e.ready = false
	return nil
}
