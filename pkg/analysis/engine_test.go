package analysis

import (
	"errors"
	"strings"
	"testing"
)

func newTestEngine(store PatternSearcher) *Engine {
	return NewEngine(store)
}

func TestAnalyzeRejectsEmptyInput(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store)

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := engine.Analyze(t.Context(), AnalysisRequest{Text: text}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Analyze(%q) error = %v, want ErrInvalidInput", text, err)
		}
	}

	// Validation happens before any collaborator call
	if got := store.queryLog(); len(got) != 0 {
		t.Errorf("store queried %d times for invalid input, want 0", len(got))
	}
}

func TestAnalyzeBenignMessage(t *testing.T) {
	engine := newTestEngine(&fakeStore{})

	assessment, err := engine.Analyze(t.Context(), AnalysisRequest{Text: "See you at the team dinner on Friday"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if assessment.Level != LevelLow {
		t.Errorf("level = %s, want LOW (score %v)", assessment.Level, assessment.OverallScore)
	}
	if assessment.OverallScore != 0 {
		t.Errorf("score = %v, want 0", assessment.OverallScore)
	}
	if len(assessment.Recommendations) != 1 {
		t.Fatalf("recommendations = %v, want exactly one reassurance line", assessment.Recommendations)
	}
	if assessment.Recommendations[0] != "✓ No significant threats detected, but always verify unexpected messages." {
		t.Errorf("reassurance line = %q", assessment.Recommendations[0])
	}
	if assessment.AnalysisID == "" {
		t.Error("missing analysis id")
	}
	if assessment.AnalyzedAt.IsZero() {
		t.Error("missing analysis timestamp")
	}
}

func TestAnalyzeSharedStoreAcrossBranches(t *testing.T) {
	// The general search and all three detectors query the same store
	// concurrently; its call log must hold up under that load.
	store := &fakeStore{}
	engine := newTestEngine(store)

	text := "urgent: verify your number at " + otherAddr
	for i := 0; i < 10; i++ {
		if _, err := engine.Analyze(t.Context(), AnalysisRequest{Text: text, UserAddresses: []string{userAddr}}); err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
	}

	// general + sim-swap + stalking + spoofing corpus lookups per run
	if got := store.queryLog(); len(got) != 40 {
		t.Errorf("store queried %d times over 10 runs, want 40", len(got))
	}
}

func TestAnalyzeVerdictForEveryDetectorThatRan(t *testing.T) {
	engine := newTestEngine(&fakeStore{})

	assessment, err := engine.Analyze(t.Context(), AnalysisRequest{Text: "nothing suspicious here"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(assessment.DetectedAttacks) != 3 {
		t.Fatalf("got %d verdicts, want one per detector that ran", len(assessment.DetectedAttacks))
	}
	seen := make(map[DetectorType]bool)
	for _, v := range assessment.DetectedAttacks {
		seen[v.Detector] = true
		if v.Triggered {
			t.Errorf("detector %s triggered on benign text", v.Detector)
		}
		if v.Indicators == nil {
			t.Errorf("detector %s has nil indicators, want empty slice", v.Detector)
		}
	}
	for _, want := range []DetectorType{DetectorAddressSpoofing, DetectorSIMSwap, DetectorWalletStalking} {
		if !seen[want] {
			t.Errorf("no verdict for detector %s", want)
		}
	}
}

func TestAnalyzeSpoofingScenario(t *testing.T) {
	engine := newTestEngine(&fakeStore{})

	req := AnalysisRequest{
		Text:          "Your wallet is compromised! Send funds immediately to " + spoofAddr,
		UserAddresses: []string{userAddr},
	}
	assessment, err := engine.Analyze(t.Context(), req)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if assessment.Breakdown[SignalAddressSpoofing] != scoreSpoofing {
		t.Errorf("spoofing breakdown = %v, want %v", assessment.Breakdown[SignalAddressSpoofing], scoreSpoofing)
	}
	if assessment.Level != LevelCritical {
		t.Errorf("level = %s, want CRITICAL (score %v)", assessment.Level, assessment.OverallScore)
	}
	if len(assessment.AddressesFound) != 1 {
		t.Errorf("addresses found = %v, want the spoofed address", assessment.AddressesFound)
	}

	joined := strings.Join(assessment.Recommendations, "\n")
	if !strings.Contains(joined, "Address spoofing detected") {
		t.Errorf("recommendations missing spoofing guidance:\n%s", joined)
	}
	if !strings.Contains(joined, "CRITICAL THREAT DETECTED") {
		t.Errorf("recommendations missing critical warning:\n%s", joined)
	}
}

func TestAnalyzeMultiSignalBoost(t *testing.T) {
	// SIM swap corpus hit plus spoofed address: two specialized
	// detectors agree, so the strongest signal is amplified.
	store := &fakeStore{results: map[Category][]PatternMatch{
		CategorySIMSwapping: {{PatternID: "1002", Severity: "critical", Similarity: 0.82, Category: CategorySIMSwapping}},
	}}
	engine := newTestEngine(store)

	req := AnalysisRequest{
		Text:          "Carrier security: confirm the transfer of your number, then move funds to " + spoofAddr,
		UserAddresses: []string{userAddr},
	}
	assessment, err := engine.Analyze(t.Context(), req)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if got := len(assessment.TriggeredDetectors()); got < 2 {
		t.Fatalf("triggered detectors = %d, want at least 2", got)
	}
	// max(90, 85, ...) * 1.2 = 108, clamped
	if assessment.OverallScore != 100 {
		t.Errorf("score = %v, want 100 after boost and clamp", assessment.OverallScore)
	}
	if assessment.Level != LevelCritical {
		t.Errorf("level = %s, want CRITICAL", assessment.Level)
	}
}

func TestAnalyzeGeneralSimilarityDoesNotBoost(t *testing.T) {
	// A strong phishing-corpus match alone is one signal: no boost.
	store := &fakeStore{results: map[Category][]PatternMatch{
		CategoryPhishing: {{PatternID: "4001", Severity: "critical", Similarity: 0.75, Category: CategoryPhishing}},
	}}
	engine := newTestEngine(store)

	assessment, err := engine.Analyze(t.Context(), AnalysisRequest{
		Text: "Your MetaMask wallet has been locked, click here to unlock it",
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if assessment.OverallScore != 75 {
		t.Errorf("score = %v, want raw 75 without boost", assessment.OverallScore)
	}
	if assessment.Breakdown[SignalPatternSimilarity] != 75 {
		t.Errorf("pattern similarity breakdown = %v, want 75", assessment.Breakdown[SignalPatternSimilarity])
	}
}

func TestAnalyzeBreakdownKeys(t *testing.T) {
	engine := newTestEngine(&fakeStore{})

	assessment, err := engine.Analyze(t.Context(), AnalysisRequest{Text: "hello there"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	for _, key := range []string{
		SignalPatternSimilarity, SignalAddressSpoofing, SignalSIMSwap, SignalWalletStalking, SignalRedFlags,
	} {
		if _, ok := assessment.Breakdown[key]; !ok {
			t.Errorf("breakdown missing key %q", key)
		}
	}
	if len(assessment.Breakdown) != 5 {
		t.Errorf("breakdown has %d keys, want 5: %v", len(assessment.Breakdown), assessment.Breakdown)
	}
}

func TestAnalyzeRedFlagsOnly(t *testing.T) {
	engine := newTestEngine(&fakeStore{})

	// urgent (15) + verify your account (20) + seed phrase (30) = 65
	assessment, err := engine.Analyze(t.Context(), AnalysisRequest{
		Text: "URGENT: verify your account and enter your seed phrase",
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if assessment.Breakdown[SignalRedFlags] != 65 {
		t.Errorf("red flag breakdown = %v, want 65", assessment.Breakdown[SignalRedFlags])
	}
	if assessment.OverallScore != 65 {
		t.Errorf("score = %v, want 65 (red flags are the strongest signal)", assessment.OverallScore)
	}
	if assessment.Level != LevelHigh {
		t.Errorf("level = %s, want HIGH", assessment.Level)
	}

	joined := strings.Join(assessment.Recommendations, "\n")
	if !strings.Contains(joined, "Exercise extreme caution") {
		t.Errorf("recommendations missing caution guidance:\n%s", joined)
	}
}

func TestAnalyzeSimilarityOutage(t *testing.T) {
	store := &fakeStore{err: errors.New("embedding provider down")}
	engine := newTestEngine(store)

	req := AnalysisRequest{
		Text:          "URGENT: send funds to " + spoofAddr + " now",
		UserAddresses: []string{userAddr},
	}
	assessment, err := engine.Analyze(t.Context(), req)

	if !errors.Is(err, ErrSimilarityUnavailable) {
		t.Fatalf("error = %v, want ErrSimilarityUnavailable", err)
	}
	if assessment == nil {
		t.Fatal("partial assessment not returned alongside the error")
	}

	// Heuristic signals still scored
	if assessment.Breakdown[SignalAddressSpoofing] != scoreSpoofing {
		t.Errorf("spoofing signal lost during outage: %v", assessment.Breakdown)
	}
	if assessment.Breakdown[SignalRedFlags] == 0 {
		t.Error("red flag signal lost during outage")
	}

	found := false
	for _, a := range assessment.Annotations {
		if a == AnnotationSimilarityUnavailable {
			found = true
		}
	}
	if !found {
		t.Errorf("annotations = %v, want %q", assessment.Annotations, AnnotationSimilarityUnavailable)
	}
}

func TestAnalyzeUniqueIDs(t *testing.T) {
	engine := newTestEngine(&fakeStore{})

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		assessment, err := engine.Analyze(t.Context(), AnalysisRequest{Text: "same text every time"})
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if seen[assessment.AnalysisID] {
			t.Fatalf("analysis id %s repeated", assessment.AnalysisID)
		}
		seen[assessment.AnalysisID] = true
	}
}
