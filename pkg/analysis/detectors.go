package analysis

import (
	"context"
	"fmt"
	"log"

	"github.com/chaintrust/vigil/pkg/patterns"
)

// Detector confidence levels when triggered, reflecting each signal's
// historical precision.
const (
	confidenceSpoofing = 0.9
	confidenceSIMSwap  = 0.85
	confidenceStalking = 0.75
)

// detectorQueryThreshold is the minimum similarity for corpus evidence
const detectorQueryThreshold = 0.4

// Transaction is a caller-supplied observation of recent activity
// against the user's wallet, consumed by the stalking detector.
type Transaction struct {
	From      string  `json:"from"`
	To        string  `json:"to,omitempty"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// SIMSwapDetector recognizes SIM swap social engineering: carrier
// impersonation, number-port requests, and SMS 2FA manipulation.
type SIMSwapDetector struct {
	store PatternSearcher
}

// NewSIMSwapDetector creates the detector. A nil store disables corpus
// evidence; keyword indicators still work.
func NewSIMSwapDetector(store PatternSearcher) *SIMSwapDetector {
	return &SIMSwapDetector{store: store}
}

// Detect scans the text for SIM swap keywords and corroborating corpus
// matches. Triggered when the corpus recognizes the text or when more
// than two keyword indicators stack up.
func (d *SIMSwapDetector) Detect(ctx context.Context, text string) DetectorVerdict {
	verdict := DetectorVerdict{Detector: DetectorSIMSwap, Indicators: []string{}}

	normalized := NormalizeText(text)
	for _, k := range patterns.Get().MatchAll(normalized, patterns.CategorySIMSwap) {
		verdict.Indicators = append(verdict.Indicators, "Contains SIM swap keyword: "+k.Phrase)
	}

	verdict.Matches = d.corpusMatches(ctx, text)
	verdict.Triggered = len(verdict.Matches) > 0 || len(verdict.Indicators) > 2
	if verdict.Triggered {
		verdict.Confidence = confidenceSIMSwap
	}
	return verdict
}

func (d *SIMSwapDetector) corpusMatches(ctx context.Context, text string) []PatternMatch {
	if d.store == nil {
		return nil
	}
	results, err := d.store.Query(ctx, text, []Category{CategorySIMSwapping}, 5, detectorQueryThreshold)
	if err != nil {
		log.Printf("[WARN] SIM swap corpus search unavailable: %v", err)
		return nil
	}
	return results[CategorySIMSwapping]
}

// StalkingDetector recognizes wallet surveillance: messages referencing
// observed activity, plus dusting and repeat-sender signals in the
// caller-supplied transaction list.
type StalkingDetector struct {
	store PatternSearcher
}

// NewStalkingDetector creates the detector.
func NewStalkingDetector(store PatternSearcher) *StalkingDetector {
	return &StalkingDetector{store: store}
}

// dustThreshold is the value in ether below which a transaction counts
// as a dusting probe.
const dustThreshold = 0.0001

// Detect checks the text against the stalking corpus and the
// transactions for dusting and repeated senders. Triggered when either
// source produces evidence.
func (d *StalkingDetector) Detect(ctx context.Context, text string, transactions []Transaction) DetectorVerdict {
	verdict := DetectorVerdict{Detector: DetectorWalletStalking, Indicators: []string{}}

	if len(transactions) > 0 {
		senders := make(map[string]int)
		dusted := false
		for _, tx := range transactions {
			if !dusted && tx.Value < dustThreshold {
				verdict.Indicators = append(verdict.Indicators, "Dusting attack detected (very small transaction)")
				dusted = true
			}
			if tx.From != "" {
				senders[tx.From]++
			}
		}
		for _, count := range senders {
			if count > 2 {
				verdict.Indicators = append(verdict.Indicators, "Repeated transactions from same address")
				break
			}
		}
	}

	verdict.Matches = d.corpusMatches(ctx, text)
	verdict.Triggered = len(verdict.Matches) > 0 || len(verdict.Indicators) > 0
	if verdict.Triggered {
		verdict.Confidence = confidenceStalking
	}
	return verdict
}

func (d *StalkingDetector) corpusMatches(ctx context.Context, text string) []PatternMatch {
	if d.store == nil {
		return nil
	}
	results, err := d.store.Query(ctx, text, []Category{CategoryWalletStalking}, 5, detectorQueryThreshold)
	if err != nil {
		log.Printf("[WARN] Stalking corpus search unavailable: %v", err)
		return nil
	}
	return results[CategoryWalletStalking]
}

// SpoofingDetector recognizes look-alike address substitution: addresses
// in the message that are visually close to, but not the same as, the
// user's own addresses.
type SpoofingDetector struct {
	store PatternSearcher
}

// NewSpoofingDetector creates the detector.
func NewSpoofingDetector(store PatternSearcher) *SpoofingDetector {
	return &SpoofingDetector{store: store}
}

// Detect extracts addresses from the text and compares each against the
// user's known addresses. Triggered on at least one similarity match;
// corpus evidence is attached for explainability but never triggers on
// its own.
func (d *SpoofingDetector) Detect(ctx context.Context, text string, userAddresses []string) DetectorVerdict {
	verdict := DetectorVerdict{Detector: DetectorAddressSpoofing, Indicators: []string{}}

	found := ExtractAddresses(text)
	verdict.AddressMatches = CompareAgainstKnown(found, userAddresses)
	for _, m := range verdict.AddressMatches {
		verdict.Indicators = append(verdict.Indicators,
			fmt.Sprintf("Address %s is %.0f%% similar to your address %s", m.Address, m.Similarity*100, m.SimilarTo))
	}

	if d.store != nil && len(found) > 0 {
		query := fmt.Sprintf("wallet address %s transaction", found[0])
		results, err := d.store.Query(ctx, query, []Category{CategorySpoofing}, 3, detectorQueryThreshold)
		if err != nil {
			log.Printf("[WARN] Spoofing corpus search unavailable: %v", err)
		} else {
			verdict.Matches = results[CategorySpoofing]
		}
	}

	verdict.Triggered = len(verdict.AddressMatches) >= 1
	if verdict.Triggered {
		verdict.Confidence = confidenceSpoofing
	}
	return verdict
}
