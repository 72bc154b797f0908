package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidInput is returned for empty or whitespace-only text, before
// any collaborator is consulted.
var ErrInvalidInput = errors.New("analysis input is empty")

// ErrSimilarityUnavailable signals that the embedding provider failed,
// so the returned assessment carries heuristic signals only. Callers
// receive the partial assessment alongside this error.
var ErrSimilarityUnavailable = errors.New("similarity search unavailable")

// AnalysisRequest is one message to assess, with optional user context
// that unlocks the spoofing and stalking signals.
type AnalysisRequest struct {
	Text          string        `json:"text"`
	UserAddresses []string      `json:"user_addresses,omitempty"`
	Transactions  []Transaction `json:"transactions,omitempty"`
}

// Detector score contributions when triggered. Spoofing outranks SIM
// swap outranks stalking, matching the severity of the attack each
// detector is precise about.
const (
	scoreSpoofing = 90.0
	scoreSIMSwap  = 85.0
	scoreStalking = 70.0
)

// multiSignalBoost amplifies the score when independent specialized
// detectors corroborate each other.
const multiSignalBoost = 1.2

// Engine fuses semantic similarity, keyword heuristics, address
// analysis, and the specialized detectors into one explainable
// assessment. Safe for concurrent use.
type Engine struct {
	store    PatternSearcher
	simSwap  *SIMSwapDetector
	stalking *StalkingDetector
	spoofing *SpoofingDetector
}

// NewEngine creates an engine over the given pattern store.
func NewEngine(store PatternSearcher) *Engine {
	return &Engine{
		store:    store,
		simSwap:  NewSIMSwapDetector(store),
		stalking: NewStalkingDetector(store),
		spoofing: NewSpoofingDetector(store),
	}
}

// Analyze runs every signal against the request and aggregates them
// into a ThreatAssessment. If the embedding provider is down the
// heuristic signals still run and the assessment is returned annotated,
// alongside ErrSimilarityUnavailable.
func (e *Engine) Analyze(ctx context.Context, req AnalysisRequest) (*ThreatAssessment, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrInvalidInput
	}

	assessment := &ThreatAssessment{
		AnalysisID:     uuid.NewString(),
		AnalyzedAt:     time.Now().UTC(),
		AddressesFound: ExtractAddresses(req.Text),
	}

	// Red flags are pure string work, no need to fan out
	assessment.RedFlags = DetectRedFlags(req.Text)

	var (
		wg            sync.WaitGroup
		generalErr    error
		simVerdict    DetectorVerdict
		stalkVerdict  DetectorVerdict
		spoofVerdict  DetectorVerdict
		patternScores map[Category][]PatternMatch
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		patternScores, generalErr = e.store.Query(ctx, req.Text, nil, 5, detectorQueryThreshold)
	}()
	go func() {
		defer wg.Done()
		simVerdict = e.simSwap.Detect(ctx, req.Text)
	}()
	go func() {
		defer wg.Done()
		stalkVerdict = e.stalking.Detect(ctx, req.Text, req.Transactions)
	}()
	go func() {
		defer wg.Done()
		spoofVerdict = e.spoofing.Detect(ctx, req.Text, req.UserAddresses)
	}()
	wg.Wait()

	if generalErr != nil {
		log.Printf("[WARN] Similarity search unavailable, scoring on heuristics only: %v", generalErr)
		patternScores = map[Category][]PatternMatch{}
		assessment.Annotations = append(assessment.Annotations, AnnotationSimilarityUnavailable)
	}
	assessment.PatternMatches = patternScores
	assessment.DetectedAttacks = []DetectorVerdict{spoofVerdict, simVerdict, stalkVerdict}

	e.aggregate(assessment, spoofVerdict, simVerdict, stalkVerdict)
	assessment.Recommendations = recommendations(assessment.Level, spoofVerdict, simVerdict, stalkVerdict)

	if generalErr != nil {
		return assessment, fmt.Errorf("%w: %v", ErrSimilarityUnavailable, generalErr)
	}
	return assessment, nil
}

// aggregate computes the breakdown and overall score: the strongest
// signal wins, boosted when multiple specialized detectors agree.
func (e *Engine) aggregate(a *ThreatAssessment, spoof, sim, stalk DetectorVerdict) {
	maxSimilarity := 0.0
	for _, matches := range a.PatternMatches {
		for _, m := range matches {
			if m.Similarity > maxSimilarity {
				maxSimilarity = m.Similarity
			}
		}
	}

	breakdown := map[string]float64{
		SignalPatternSimilarity: maxSimilarity * 100,
		SignalAddressSpoofing:   0,
		SignalSIMSwap:           0,
		SignalWalletStalking:    0,
		SignalRedFlags:          RedFlagScore(a.RedFlags),
	}

	triggered := 0
	if spoof.Triggered {
		breakdown[SignalAddressSpoofing] = scoreSpoofing
		triggered++
	}
	if sim.Triggered {
		breakdown[SignalSIMSwap] = scoreSIMSwap
		triggered++
	}
	if stalk.Triggered {
		breakdown[SignalWalletStalking] = scoreStalking
		triggered++
	}

	overall := 0.0
	for _, score := range breakdown {
		if score > overall {
			overall = score
		}
	}

	// Independent corroboration: general similarity does not count
	// toward the boost, only the specialized detectors do
	if triggered > 1 {
		overall *= multiSignalBoost
	}
	if overall > 100 {
		overall = 100
	}

	a.Breakdown = breakdown
	a.OverallScore = overall
	a.Level = LevelForScore(overall)
}

// recommendations renders actionable guidance for the user, strongest
// warnings first.
func recommendations(level ThreatLevel, spoof, sim, stalk DetectorVerdict) []string {
	var recs []string

	if level == LevelCritical {
		recs = append(recs,
			"🚨 CRITICAL THREAT DETECTED: Do NOT interact with this message in any way.",
			"Do NOT click any links, download files, or provide any information.",
			"If this involves your wallet, verify all addresses manually character-by-character.",
		)
	}

	if spoof.Triggered {
		recs = append(recs,
			"⚠️ Address spoofing detected: The address in this message is similar to yours but different. This is a scam.",
			"Always copy addresses from trusted sources and verify the full address before sending funds.",
		)
	}
	if sim.Triggered {
		recs = append(recs,
			"⚠️ SIM swapping attempt detected: Contact your carrier immediately if you didn't request any changes.",
			"Switch to hardware security keys or authenticator apps instead of SMS for 2FA.",
		)
	}
	if stalk.Triggered {
		recs = append(recs,
			"⚠️ Wallet stalking detected: Someone may be monitoring your wallet activity.",
			"Consider using a new wallet address if you're concerned about privacy.",
			"Be cautious about sharing your wallet address publicly.",
		)
	}

	if level == LevelHigh || level == LevelMedium {
		recs = append(recs,
			"Exercise extreme caution. Verify the sender through a separate, trusted channel.",
			"Never share private keys, seed phrases, or passwords.",
		)
	}

	if len(recs) == 0 {
		recs = append(recs, "✓ No significant threats detected, but always verify unexpected messages.")
	}
	return recs
}
