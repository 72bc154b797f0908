package analysis

import "time"

// ThreatLevel grades an assessment score
type ThreatLevel string

const (
	LevelLow      ThreatLevel = "LOW"
	LevelMedium   ThreatLevel = "MEDIUM"
	LevelHigh     ThreatLevel = "HIGH"
	LevelCritical ThreatLevel = "CRITICAL"
)

// LevelForScore maps a 0-100 score to a threat level. Monotonic with
// non-overlapping breakpoints at 40, 60 and 80.
func LevelForScore(score float64) ThreatLevel {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	default:
		return LevelLow
	}
}

// DetectorType identifies a specialized detector
type DetectorType string

const (
	DetectorAddressSpoofing DetectorType = "address_spoofing"
	DetectorSIMSwap         DetectorType = "sim_swapping"
	DetectorWalletStalking  DetectorType = "wallet_stalking"
)

// DetectorVerdict is the judgment of one specialized detector.
// A verdict exists only for detectors that actually ran.
type DetectorVerdict struct {
	Detector   DetectorType   `json:"detector_type"`
	Triggered  bool           `json:"is_triggered"`
	Confidence float64        `json:"confidence"`
	Indicators []string       `json:"indicators"`
	Matches    []PatternMatch `json:"patterns_found,omitempty"`

	// AddressMatches is populated by the address-spoofing detector only
	AddressMatches []AddressSimilarityResult `json:"similarity_matches,omitempty"`
}

// Breakdown keys for ThreatAssessment.Breakdown
const (
	SignalPatternSimilarity = "pattern_similarity"
	SignalAddressSpoofing   = "address_spoofing"
	SignalSIMSwap           = "sim_swapping"
	SignalWalletStalking    = "wallet_stalking"
	SignalRedFlags          = "red_flags"
)

// AnnotationSimilarityUnavailable marks an assessment computed without
// the similarity signals because the embedding provider failed.
const AnnotationSimilarityUnavailable = "similarity_search_unavailable"

// ThreatAssessment is the root aggregate returned for one analysis.
// Constructed fresh per request, immutable once returned.
type ThreatAssessment struct {
	AnalysisID string    `json:"analysis_id"`
	AnalyzedAt time.Time `json:"analyzed_at"`

	OverallScore    float64            `json:"overall_threat_score"`
	Level           ThreatLevel        `json:"threat_level"`
	DetectedAttacks []DetectorVerdict  `json:"detected_attacks"`
	Breakdown       map[string]float64 `json:"threat_breakdown"`
	Recommendations []string           `json:"recommendations"`

	RedFlags       []RedFlagHit                `json:"red_flags_detected"`
	AddressesFound []string                    `json:"addresses_found"`
	PatternMatches map[Category][]PatternMatch `json:"pattern_matches"`

	Annotations []string `json:"annotations,omitempty"`
}

// TriggeredDetectors returns the verdicts that fired
func (a *ThreatAssessment) TriggeredDetectors() []DetectorVerdict {
	var triggered []DetectorVerdict
	for _, v := range a.DetectedAttacks {
		if v.Triggered {
			triggered = append(triggered, v)
		}
	}
	return triggered
}
