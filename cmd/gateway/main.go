package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/chaintrust/vigil/pkg/analysis"
	"github.com/chaintrust/vigil/pkg/audit"
	"github.com/chaintrust/vigil/pkg/chain"
	"github.com/chaintrust/vigil/pkg/config"
	"github.com/chaintrust/vigil/pkg/credits"
	"github.com/chaintrust/vigil/pkg/telemetry"
)

const Version = "0.1.0"

// analysisCost is debited from the caller's balance per paid operation
const analysisCost = 1

// Gateway holds the wired collaborators.
// The chain client and Postgres recorder are optional and degrade
// gracefully when unconfigured.
type Gateway struct {
	cfg      *config.Config
	store    *analysis.PatternStore
	engine   *analysis.Engine
	wallets  *analysis.WalletAnalyzer // nil without an RPC endpoint
	spoofing *analysis.SpoofingDetector
	ledger   credits.Ledger
	recorder audit.Recorder
	closers  []func()
}

// NewGateway wires every collaborator from configuration.
func NewGateway(ctx context.Context, cfg *config.Config) (*Gateway, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	g := &Gateway{cfg: cfg}

	// Embedding provider
	embedder, err := analysis.NewEmbedder(analysis.EmbedderConfig{
		Provider:  string(cfg.EmbeddingProvider),
		APIKey:    cfg.EmbeddingAPIKey,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
		BaseURL:   cfg.EmbeddingBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	log.Printf("✓ Embedding provider ready (%s)", cfg.EmbeddingProvider)

	// Pattern store with the built-in corpus, optionally extended
	store, err := analysis.NewPatternStore(embedder)
	if err != nil {
		return nil, fmt.Errorf("pattern store: %w", err)
	}
	seeds := analysis.DefaultPatterns()
	if cfg.SeedFile != "" {
		extra, err := analysis.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("seed file %s: %w", cfg.SeedFile, err)
		}
		seeds = append(seeds, extra...)
		log.Printf("✓ Loaded %d extra patterns from %s", len(extra), cfg.SeedFile)
	}
	if err := store.Seed(ctx, seeds); err != nil {
		return nil, fmt.Errorf("seed pattern store: %w", err)
	}
	g.store = store
	g.engine = analysis.NewEngine(store)
	g.spoofing = analysis.NewSpoofingDetector(store)

	// Blockchain RPC - optional
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.ChainScanSpan)
		if err != nil {
			log.Printf("○ Wallet analysis disabled (rpc dial failed: %v)", err)
		} else {
			g.wallets = analysis.NewWalletAnalyzer(chainClient, store, embedder)
			g.closers = append(g.closers, chainClient.Close)
			log.Println("✓ Wallet analysis enabled (json-rpc)")
		}
	} else {
		log.Println("○ Wallet analysis disabled (no rpc url)")
	}

	// Credit ledger: Redis when configured, in-memory otherwise
	if cfg.RedisAddr != "" {
		ledger, err := credits.NewRedisLedger(ctx, cfg.RedisAddr, cfg.FreeTierCredits, cfg.ProTierCredits)
		if err != nil {
			return nil, fmt.Errorf("redis ledger: %w", err)
		}
		g.ledger = ledger
		g.closers = append(g.closers, func() { _ = ledger.Close() })
		log.Println("✓ Credit ledger backed by Redis")
	} else {
		g.ledger = credits.NewMemoryLedger(cfg.FreeTierCredits, cfg.ProTierCredits)
		log.Println("○ Credit ledger in-memory (no redis addr)")
	}

	// Audit trail: JSONL always, Postgres when configured
	sinks := audit.Multi{}
	jsonl, err := audit.NewJSONLRecorder(cfg.AuditLogPath)
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	sinks = append(sinks, jsonl)
	if cfg.PostgresDSN != "" {
		pg, err := audit.NewPostgresRecorder(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres recorder: %w", err)
		}
		sinks = append(sinks, pg)
		log.Println("✓ Assessment history in Postgres")
	}
	g.recorder = sinks
	g.closers = append(g.closers, func() { _ = sinks.Close() })

	return g, nil
}

// Close releases every collaborator in reverse wiring order.
func (g *Gateway) Close() {
	for i := len(g.closers) - 1; i >= 0; i-- {
		g.closers[i]()
	}
}

// record writes an audit entry, best effort. Assessments are already
// returned to the caller; a failing sink must not fail the request.
func (g *Gateway) record(ctx context.Context, e audit.Entry) {
	if err := g.recorder.Record(ctx, e); err != nil {
		log.Printf("[WARN] Audit record failed for %s: %v", e.AnalysisID, err)
	}
}

// debit charges one analysis. The caller key defaults to "anonymous" so
// unauthenticated use still draws from a shared free-tier pool.
func (g *Gateway) debit(ctx context.Context, caller string) (int64, error) {
	if caller == "" {
		caller = "anonymous"
	}
	return g.ledger.Debit(ctx, caller, analysisCost)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		port := ""
		if len(os.Args) > 2 {
			port = os.Args[2]
		}
		runHTTPServer(port)
	case "analyze":
		if len(os.Args) < 3 {
			fmt.Println("Usage: vigil analyze <text>")
			os.Exit(1)
		}
		runCLIAnalyze(strings.Join(os.Args[2:], " "))
	case "patterns":
		listPatterns()
	case "version":
		fmt.Printf("Vigil v%s\n", Version)
		fmt.Println("Web3 Social Engineering Threat Analyzer")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Vigil v%s - Web3 Social Engineering Threat Analyzer\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  vigil serve [port]     Start HTTP server (default: 3000)")
	fmt.Println("  vigil analyze <text>   Analyze a message from the command line")
	fmt.Println("  vigil patterns         List the seeded threat corpus")
	fmt.Println("  vigil version          Show version")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  vigil serve 8080")
	fmt.Println("  vigil analyze \"URGENT: verify your seed phrase now\"")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  VIGIL_EMBEDDING_PROVIDER  openrouter | openai | local | hash")
	fmt.Println("  VIGIL_EMBEDDING_API_KEY   API key for cloud embedding providers")
	fmt.Println("  VIGIL_RPC_URL             JSON-RPC endpoint for wallet analysis")
	fmt.Println("  VIGIL_REDIS_ADDR          Redis address for the credit ledger")
	fmt.Println("  VIGIL_POSTGRES_DSN        Postgres DSN for assessment history")
}

// ============================================================================
// HTTP Server Mode
// ============================================================================

// analyzeRequest is the POST /analyze body. CallerID keys the credit
// ledger; wallet context unlocks the spoofing and stalking signals.
type analyzeRequest struct {
	Text          string                 `json:"text"`
	UserAddresses []string               `json:"user_addresses,omitempty"`
	Transactions  []analysis.Transaction `json:"transactions,omitempty"`
	CallerID      string                 `json:"caller_id,omitempty"`
}

func runHTTPServer(port string) {
	cfg := config.NewDefaultConfig()
	if port != "" {
		cfg.ListenAddr = ":" + port
	}
	cfg.MustValidate()

	ctx := context.Background()
	gw, err := NewGateway(ctx, cfg)
	if err != nil {
		log.Fatalf("[STARTUP] FATAL: %v", err)
	}
	defer gw.Close()

	telemetry.GlobalClient.Track("gateway_started", map[string]interface{}{"version": Version})

	app := fiber.New(fiber.Config{
		AppName: "Vigil",
	})

	app.Get("/health", func(c fiber.Ctx) error {
		counts := gw.store.Counts()
		total := 0
		for _, n := range counts {
			total += n
		}
		return c.JSON(fiber.Map{
			"status":          "ok",
			"version":         Version,
			"patterns_loaded": total,
			"wallet_analysis": gw.wallets != nil,
		})
	})

	// Full threat analysis: similarity + detectors + red flags
	app.Post("/analyze", func(c fiber.Ctx) error {
		var req analyzeRequest
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}

		if remaining, err := gw.debit(c.Context(), req.CallerID); err != nil {
			if errors.Is(err, credits.ErrInsufficientCredits) {
				return c.Status(402).JSON(fiber.Map{
					"error":   "insufficient credits",
					"balance": remaining,
				})
			}
			return c.Status(500).JSON(fiber.Map{"error": "credit ledger unavailable"})
		}

		assessment, err := gw.engine.Analyze(c.Context(), analysis.AnalysisRequest{
			Text:          req.Text,
			UserAddresses: req.UserAddresses,
			Transactions:  req.Transactions,
		})
		switch {
		case errors.Is(err, analysis.ErrInvalidInput):
			return c.Status(400).JSON(fiber.Map{"error": "text field is required"})
		case errors.Is(err, analysis.ErrSimilarityUnavailable):
			// Heuristic-only assessment, annotated; still worth returning
			log.Printf("[WARN] %s served without similarity signals", assessment.AnalysisID)
		case err != nil:
			return c.Status(500).JSON(fiber.Map{"error": "analysis failed"})
		}

		gw.record(c.Context(), audit.Entry{
			AnalysisID: assessment.AnalysisID,
			Kind:       "text",
			Subject:    truncate(req.Text, 200),
			Score:      assessment.OverallScore,
			Level:      string(assessment.Level),
			Payload:    assessment,
		})
		return c.JSON(assessment)
	})

	// Address-spoofing check only, no corpus scoring of the text itself
	app.Post("/detect-address-spoofing", func(c fiber.Ctx) error {
		var req struct {
			Text          string   `json:"text"`
			UserAddresses []string `json:"user_addresses"`
			CallerID      string   `json:"caller_id,omitempty"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}
		if strings.TrimSpace(req.Text) == "" {
			return c.Status(400).JSON(fiber.Map{"error": "text field is required"})
		}

		if remaining, err := gw.debit(c.Context(), req.CallerID); err != nil {
			if errors.Is(err, credits.ErrInsufficientCredits) {
				return c.Status(402).JSON(fiber.Map{"error": "insufficient credits", "balance": remaining})
			}
			return c.Status(500).JSON(fiber.Map{"error": "credit ledger unavailable"})
		}

		verdict := gw.spoofing.Detect(c.Context(), req.Text, req.UserAddresses)
		return c.JSON(verdict)
	})

	// On-chain behavioral analysis
	app.Post("/analyze-wallet", func(c fiber.Ctx) error {
		if gw.wallets == nil {
			return c.Status(503).JSON(fiber.Map{"error": "wallet analysis disabled: no rpc endpoint configured"})
		}

		var req struct {
			Address  string `json:"wallet_address"`
			CallerID string `json:"caller_id,omitempty"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}

		if remaining, err := gw.debit(c.Context(), req.CallerID); err != nil {
			if errors.Is(err, credits.ErrInsufficientCredits) {
				return c.Status(402).JSON(fiber.Map{"error": "insufficient credits", "balance": remaining})
			}
			return c.Status(500).JSON(fiber.Map{"error": "credit ledger unavailable"})
		}

		assessment, err := gw.wallets.AnalyzeWallet(c.Context(), req.Address)
		if err != nil {
			if errors.Is(err, analysis.ErrInvalidInput) {
				return c.Status(400).JSON(fiber.Map{"error": "invalid wallet address"})
			}
			return c.Status(502).JSON(fiber.Map{"error": "wallet analysis failed"})
		}

		gw.record(c.Context(), audit.Entry{
			AnalysisID: assessment.AnalysisID,
			Kind:       "wallet",
			Subject:    assessment.Address,
			Score:      assessment.RiskScore,
			Level:      string(assessment.Level),
			Payload:    assessment,
		})
		return c.JSON(assessment)
	})

	// Behavioral similarity between two wallets
	app.Post("/compare-wallets", func(c fiber.Ctx) error {
		if gw.wallets == nil {
			return c.Status(503).JSON(fiber.Map{"error": "wallet analysis disabled: no rpc endpoint configured"})
		}

		var req struct {
			Wallet1  string `json:"wallet1"`
			Wallet2  string `json:"wallet2"`
			CallerID string `json:"caller_id,omitempty"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}

		if remaining, err := gw.debit(c.Context(), req.CallerID); err != nil {
			if errors.Is(err, credits.ErrInsufficientCredits) {
				return c.Status(402).JSON(fiber.Map{"error": "insufficient credits", "balance": remaining})
			}
			return c.Status(500).JSON(fiber.Map{"error": "credit ledger unavailable"})
		}

		cmp, err := gw.wallets.CompareWallets(c.Context(), req.Wallet1, req.Wallet2)
		if err != nil {
			if errors.Is(err, analysis.ErrInvalidInput) {
				return c.Status(400).JSON(fiber.Map{"error": "both wallet addresses must be valid"})
			}
			return c.Status(502).JSON(fiber.Map{"error": "wallet comparison failed"})
		}
		return c.JSON(cmp)
	})

	// Remaining credits for a caller
	app.Get("/credits/:caller", func(c fiber.Ctx) error {
		balance, err := gw.ledger.Balance(c.Context(), c.Params("caller"))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "credit ledger unavailable"})
		}
		return c.JSON(fiber.Map{
			"caller":    c.Params("caller"),
			"balance":   balance,
			"unlimited": balance == credits.Unlimited,
		})
	})

	// Seeded corpus, for operators verifying what the engine knows
	app.Get("/patterns", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"counts":   gw.store.Counts(),
			"patterns": gw.store.Patterns(),
		})
	})

	log.Printf("Vigil HTTP server starting on %s", cfg.ListenAddr)
	log.Printf("Endpoints:")
	log.Printf("  GET  /health                   - Health check")
	log.Printf("  POST /analyze                  - Full threat analysis")
	log.Printf("  POST /detect-address-spoofing  - Address similarity check")
	log.Printf("  POST /analyze-wallet           - On-chain behavioral analysis")
	log.Printf("  POST /compare-wallets          - Wallet relationship check")
	log.Printf("  GET  /credits/:caller          - Remaining credits")
	log.Printf("  GET  /patterns                 - Seeded threat corpus")

	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}

// truncate limits audit subjects so one giant message cannot bloat the log
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ============================================================================
// CLI Mode
// ============================================================================

func runCLIAnalyze(text string) {
	cfg := config.NewDefaultConfig()
	cfg.MustValidate()

	ctx := context.Background()
	gw, err := NewGateway(ctx, cfg)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer gw.Close()

	assessment, err := gw.engine.Analyze(ctx, analysis.AnalysisRequest{Text: text})
	if err != nil && !errors.Is(err, analysis.ErrSimilarityUnavailable) {
		log.Fatalf("analysis failed: %v", err)
	}

	out, _ := json.MarshalIndent(assessment, "", "  ")
	fmt.Println(string(out))
}

func listPatterns() {
	pats := analysis.DefaultPatterns()
	fmt.Printf("Built-in threat corpus: %d patterns\n\n", len(pats))

	byCategory := make(map[analysis.Category][]analysis.AttackPattern)
	for _, p := range pats {
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}
	for _, cat := range analysis.AllCategories() {
		fmt.Printf("%s (%d):\n", cat, len(byCategory[cat]))
		for _, p := range byCategory[cat] {
			text := p.Text
			if len(text) > 80 {
				text = text[:77] + "..."
			}
			fmt.Printf("  [%s] #%s %s\n", p.Severity, p.ID, text)
		}
		fmt.Println()
	}
}
