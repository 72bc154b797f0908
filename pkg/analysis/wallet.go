package analysis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/chaintrust/vigil/pkg/chain"
)

// Severity weights for the wallet risk ladder. Each corpus match
// contributes its weight scaled by similarity.
const (
	riskWeightCritical = 40.0
	riskWeightHigh     = 30.0
	riskWeightMedium   = 20.0
	riskWeightLow      = 10.0

	riskPerAnomaly     = 15.0
	riskHighActivity   = 10.0
	highActivityTxns   = 100
	relatedWalletScore = 0.7
)

// WalletAssessment is the result of behavioral analysis for one wallet.
type WalletAssessment struct {
	AnalysisID string    `json:"analysis_id"`
	Address    string    `json:"wallet_address"`
	AnalyzedAt time.Time `json:"analyzed_at"`

	Stats     *chain.WalletStats `json:"transaction_summary"`
	Signature string             `json:"behavioral_signature"`

	RiskScore        float64        `json:"risk_score"`
	Level            ThreatLevel    `json:"risk_level"`
	PatternsDetected []PatternMatch `json:"patterns_detected"`
	Anomalies        []string       `json:"anomalies"`
	Insights         []string       `json:"insights"`
	Recommendations  []string       `json:"recommendations"`

	Annotations []string `json:"annotations,omitempty"`
}

// WalletComparison reports how behaviorally similar two wallets are.
type WalletComparison struct {
	Wallet1    string `json:"wallet1"`
	Wallet2    string `json:"wallet2"`
	Signature1 string `json:"signature1"`
	Signature2 string `json:"signature2"`

	SimilarityScore float64  `json:"similarity_score"`
	LikelyRelated   bool     `json:"likely_related"`
	SharedTraits    []string `json:"shared_traits"`
}

// WalletAnalyzer fuses on-chain statistics, behavioral signatures, and
// the on-chain pattern corpus into a wallet risk assessment.
type WalletAnalyzer struct {
	chain    ChainReader
	store    PatternSearcher
	embedder Embedder
}

// NewWalletAnalyzer creates a wallet analyzer.
func NewWalletAnalyzer(chainReader ChainReader, store PatternSearcher, embedder Embedder) *WalletAnalyzer {
	return &WalletAnalyzer{chain: chainReader, store: store, embedder: embedder}
}

// AnalyzeWallet collects on-chain statistics for the address, renders a
// behavioral signature, and scores it against the pattern corpus. A
// failing corpus search degrades to a stats-only assessment annotated
// accordingly; a failing chain read is fatal since there is nothing
// left to score.
func (w *WalletAnalyzer) AnalyzeWallet(ctx context.Context, address string) (*WalletAssessment, error) {
	if !chain.ValidAddress(address) {
		return nil, fmt.Errorf("%w: invalid wallet address %q", ErrInvalidInput, address)
	}

	stats, err := w.chain.CollectStats(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("collect wallet stats: %w", err)
	}

	assessment := &WalletAssessment{
		AnalysisID: uuid.NewString(),
		Address:    stats.Address,
		AnalyzedAt: time.Now().UTC(),
		Stats:      stats,
		Signature:  BuildSignature(stats),
		Anomalies:  detectAnomalies(stats),
	}

	results, err := w.store.Query(ctx, assessment.Signature,
		[]Category{CategoryWalletStalking, CategoryTransaction}, 5, 0.3)
	if err != nil {
		log.Printf("[WARN] Wallet corpus search unavailable for %s: %v", stats.Address, err)
		assessment.Annotations = append(assessment.Annotations, AnnotationSimilarityUnavailable)
	} else {
		for _, cat := range []Category{CategoryWalletStalking, CategoryTransaction} {
			assessment.PatternsDetected = append(assessment.PatternsDetected, results[cat]...)
		}
	}

	assessment.RiskScore = walletRiskScore(assessment.PatternsDetected, assessment.Anomalies, stats)
	assessment.Level = LevelForScore(assessment.RiskScore)
	assessment.Insights = walletInsights(assessment)
	assessment.Recommendations = walletRecommendations(assessment)
	return assessment, nil
}

// CompareWallets measures behavioral similarity between two wallets by
// embedding their signatures and taking the cosine.
func (w *WalletAnalyzer) CompareWallets(ctx context.Context, wallet1, wallet2 string) (*WalletComparison, error) {
	if !chain.ValidAddress(wallet1) || !chain.ValidAddress(wallet2) {
		return nil, fmt.Errorf("%w: both wallet addresses must be valid", ErrInvalidInput)
	}

	stats1, err := w.chain.CollectStats(ctx, wallet1)
	if err != nil {
		return nil, fmt.Errorf("collect stats for %s: %w", wallet1, err)
	}
	stats2, err := w.chain.CollectStats(ctx, wallet2)
	if err != nil {
		return nil, fmt.Errorf("collect stats for %s: %w", wallet2, err)
	}

	cmp := &WalletComparison{
		Wallet1:      stats1.Address,
		Wallet2:      stats2.Address,
		Signature1:   BuildSignature(stats1),
		Signature2:   BuildSignature(stats2),
		SharedTraits: sharedClauses(stats1, stats2),
	}

	vec1, err := w.embedder.Embed(ctx, cmp.Signature1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSimilarityUnavailable, err)
	}
	vec2, err := w.embedder.Embed(ctx, cmp.Signature2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSimilarityUnavailable, err)
	}

	cmp.SimilarityScore = cosineSimilarity(vec1, vec2)
	cmp.LikelyRelated = cmp.SimilarityScore > relatedWalletScore
	return cmp, nil
}

// detectAnomalies flags behaviors that deviate from normal wallet
// activity, phrased to match the on-chain pattern corpus.
func detectAnomalies(stats *chain.WalletStats) []string {
	anomalies := []string{}

	if stats.Balance == 0 && stats.TxCount > 0 {
		anomalies = append(anomalies, "emptied wallet despite transaction history")
	}
	if stats.AvgTimeBetweenTx > 0 && stats.AvgTimeBetweenTx < 300 {
		anomalies = append(anomalies, "automated transaction timing")
	}
	if len(stats.Amounts) > 0 {
		sum := 0.0
		for _, a := range stats.Amounts {
			sum += a
		}
		if sum/float64(len(stats.Amounts)) < 0.001 {
			anomalies = append(anomalies, "micro-transaction dusting activity")
		}
	}
	return anomalies
}

// walletRiskScore applies the severity ladder: corpus matches scaled by
// similarity, a fixed bump per anomaly, and a high-activity bump.
func walletRiskScore(matches []PatternMatch, anomalies []string, stats *chain.WalletStats) float64 {
	score := 0.0
	for _, m := range matches {
		switch m.Severity {
		case "critical":
			score += m.Similarity * riskWeightCritical
		case "high":
			score += m.Similarity * riskWeightHigh
		case "medium":
			score += m.Similarity * riskWeightMedium
		default:
			score += m.Similarity * riskWeightLow
		}
	}

	score += float64(len(anomalies)) * riskPerAnomaly

	if stats.OutgoingCount > highActivityTxns {
		score += riskHighActivity
	}

	if score > 100 {
		score = 100
	}
	return score
}

func walletInsights(a *WalletAssessment) []string {
	var insights []string

	if len(a.Anomalies) > 0 {
		insights = append(insights,
			fmt.Sprintf("🔍 Detected %d behavioral anomalies", len(a.Anomalies)),
			"This wallet shows patterns that deviate from normal activity")
	}
	if len(a.PatternsDetected) > 0 {
		top := a.PatternsDetected[0]
		for _, m := range a.PatternsDetected[1:] {
			if m.Similarity > top.Similarity {
				top = m
			}
		}
		insights = append(insights,
			fmt.Sprintf("📊 Behavioral cluster: %s", top.Tactic),
			fmt.Sprintf("Similarity to known patterns: %.1f%%", top.Similarity*100))
	}
	if len(insights) == 0 {
		insights = append(insights,
			"✓ No significant anomalies detected",
			"Wallet behavior appears normal")
	}
	return insights
}

func walletRecommendations(a *WalletAssessment) []string {
	var recs []string

	if a.Level == LevelCritical {
		recs = append(recs,
			"🚨 CRITICAL: This wallet shows highly suspicious patterns. Exercise extreme caution.",
			"Do not interact with this wallet or send funds to it.")
	}

	for _, m := range a.PatternsDetected {
		if m.Category == CategoryWalletStalking {
			recs = append(recs, "⚠️ Wallet stalking patterns detected. This wallet may be monitoring other addresses.")
			break
		}
	}

	if len(a.Anomalies) > 0 {
		recs = append(recs, fmt.Sprintf("⚠️ %d anomalies detected in transaction patterns.", len(a.Anomalies)))
	}

	if len(recs) == 0 {
		recs = append(recs, "✓ No significant threats detected in wallet behavior.")
	}
	return recs
}

// sharedClauses returns behavior clauses present in both wallets.
func sharedClauses(a, b *chain.WalletStats) []string {
	clausesB := make(map[string]struct{})
	for _, c := range signatureClauses(b) {
		clausesB[c] = struct{}{}
	}

	shared := []string{}
	for _, c := range signatureClauses(a) {
		if _, ok := clausesB[c]; ok {
			shared = append(shared, c)
		}
	}
	return shared
}
