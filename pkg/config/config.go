package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// EmbeddingProvider defines the backend embedding service type
type EmbeddingProvider string

const (
	ProviderNone       EmbeddingProvider = "none"       // No embeddings, heuristics only
	ProviderOpenRouter EmbeddingProvider = "openrouter" // OpenRouter (default when a key is set)
	ProviderOpenAI     EmbeddingProvider = "openai"     // Direct OpenAI API
	ProviderLocal      EmbeddingProvider = "local"      // Local ONNX feature extraction
	ProviderHash       EmbeddingProvider = "hash"       // Deterministic hash vectors (offline/testing)
)

// Config holds global settings for the Vigil gateway.
// All settings can be configured via environment variables or programmatically.
type Config struct {
	// === Core Settings ===
	ListenAddr   string // HTTP listen address (default: ":3000")
	AuditLogPath string // Path to assessment audit log file (default: "assessments.jsonl")

	// === Embedding Provider Configuration ===
	EmbeddingProvider  EmbeddingProvider // Which embedding service to use
	EmbeddingAPIKey    string            // API key for cloud providers (env: VIGIL_EMBEDDING_API_KEY)
	EmbeddingModel     string            // Model identifier (e.g., "qwen/qwen3-embedding-4b")
	EmbeddingBaseURL   string            // Custom base URL for OpenAI-compatible endpoints
	EmbeddingDimension int               // Vector dimension shared with the pattern store

	// === Detection Thresholds ===
	PatternScoreThreshold  float32 // Minimum similarity for a pattern match (default: 0.4)
	SpoofSimilarityCutoff  float64 // Address similarity above this is a spoof candidate (default: 0.6)
	SpoofHighRiskCutoff    float64 // Address similarity above this is HIGH risk (default: 0.8)
	WalletRelatedThreshold float64 // Signature similarity above this marks wallets related (default: 0.7)

	// === Blockchain RPC ===
	RPCURL        string // JSON-RPC endpoint for balance/block queries
	ChainScanSpan uint64 // How many recent blocks to scan for wallet stats (default: 50)

	// === Collaborator Backends ===
	RedisAddr   string // Redis address for the credit ledger ("" = in-memory ledger)
	PostgresDSN string // Postgres DSN for assessment history ("" = JSONL file only)
	SeedFile    string // YAML seed file overriding the built-in pattern corpus

	// === Credit Tiers ===
	FreeTierCredits int64 // Credits granted to first-time users (default: 10)
	ProTierCredits  int64 // Credits granted on pro upgrade (default: 1000)
}

// NewDefaultConfig creates a Config with sensible defaults.
// All settings can be overridden via environment variables.
func NewDefaultConfig() *Config {
	return &Config{
		ListenAddr:   GetEnv("VIGIL_LISTEN_ADDR", ":3000"),
		AuditLogPath: GetEnv("VIGIL_AUDIT_LOG", "assessments.jsonl"),

		EmbeddingProvider:  detectEmbeddingProvider(),
		EmbeddingAPIKey:    GetEnv("VIGIL_EMBEDDING_API_KEY", os.Getenv("OPENROUTER_API_KEY")),
		EmbeddingModel:     GetEnv("VIGIL_EMBEDDING_MODEL", "qwen/qwen3-embedding-4b"),
		EmbeddingBaseURL:   GetEnv("VIGIL_EMBEDDING_BASE_URL", ""),
		EmbeddingDimension: GetEnvInt("VIGIL_EMBEDDING_DIM", 1024),

		PatternScoreThreshold:  float32(GetEnvFloat("VIGIL_PATTERN_THRESHOLD", 0.4)),
		SpoofSimilarityCutoff:  GetEnvFloat("VIGIL_SPOOF_CUTOFF", 0.6),
		SpoofHighRiskCutoff:    GetEnvFloat("VIGIL_SPOOF_HIGH_CUTOFF", 0.8),
		WalletRelatedThreshold: GetEnvFloat("VIGIL_WALLET_RELATED_THRESHOLD", 0.7),

		RPCURL:        GetEnv("VIGIL_RPC_URL", ""),
		ChainScanSpan: uint64(clampInt(GetEnvInt("VIGIL_CHAIN_SCAN_SPAN", 50), 1, 2048)),

		RedisAddr:   GetEnv("VIGIL_REDIS_ADDR", ""),
		PostgresDSN: GetEnv("VIGIL_POSTGRES_DSN", ""),
		SeedFile:    GetEnv("VIGIL_SEED_FILE", ""),

		FreeTierCredits: int64(GetEnvInt("VIGIL_FREE_TIER_CREDITS", 10)),
		ProTierCredits:  int64(GetEnvInt("VIGIL_PRO_TIER_CREDITS", 1000)),
	}
}

// clampInt ensures a value is within bounds
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func detectEmbeddingProvider() EmbeddingProvider {
	// Check explicit provider setting first
	if p := os.Getenv("VIGIL_EMBEDDING_PROVIDER"); p != "" {
		return EmbeddingProvider(p)
	}
	// Auto-detect based on available keys
	if os.Getenv("VIGIL_EMBEDDING_API_KEY") != "" || os.Getenv("OPENROUTER_API_KEY") != "" {
		return ProviderOpenRouter
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}
	// Deterministic hash vectors keep the pattern store usable offline
	return ProviderHash
}

// Helper functions for environment variable parsing.
// These are exported for use by other packages (e.g., pkg/analysis).

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvSlice returns a comma-separated list from an environment variable or a default value.
func GetEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		var parts []string
		for _, p := range strings.Split(v, ",") {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var problems []string

	if c.EmbeddingDimension <= 0 {
		problems = append(problems, "VIGIL_EMBEDDING_DIM must be positive")
	}
	if c.PatternScoreThreshold < 0 || c.PatternScoreThreshold > 1 {
		problems = append(problems, "VIGIL_PATTERN_THRESHOLD must be in [0,1]")
	}
	if c.SpoofSimilarityCutoff < 0 || c.SpoofSimilarityCutoff > 1 {
		problems = append(problems, "VIGIL_SPOOF_CUTOFF must be in [0,1]")
	}
	if c.SpoofHighRiskCutoff < c.SpoofSimilarityCutoff {
		problems = append(problems, "VIGIL_SPOOF_HIGH_CUTOFF must be >= VIGIL_SPOOF_CUTOFF")
	}
	if c.FreeTierCredits < 0 || c.ProTierCredits < 0 {
		problems = append(problems, "credit tier values must be non-negative")
	}

	switch c.EmbeddingProvider {
	case ProviderNone, ProviderOpenRouter, ProviderOpenAI, ProviderLocal, ProviderHash:
	default:
		problems = append(problems, fmt.Sprintf("unknown embedding provider: %s", c.EmbeddingProvider))
	}

	if (c.EmbeddingProvider == ProviderOpenRouter || c.EmbeddingProvider == ProviderOpenAI) && c.EmbeddingAPIKey == "" {
		problems = append(problems, "VIGIL_EMBEDDING_API_KEY required for cloud embedding providers")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MustValidate calls Validate and fatally exits if validation fails.
// Call this at startup before starting the server.
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		log.Fatalf("[STARTUP] FATAL: Configuration validation failed: %v", err)
	}
	log.Println("[STARTUP] Configuration validated successfully")
}
