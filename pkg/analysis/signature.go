package analysis

import (
	"strings"

	"github.com/chaintrust/vigil/pkg/chain"
)

// BuildSignature renders wallet statistics as a deterministic natural-
// language behavioral signature. The phrasing mirrors the on-chain
// pattern corpus so the embedded signature lands near the matching
// behavior patterns in vector space. Clause order is fixed; identical
// stats always produce the identical signature.
func BuildSignature(stats *chain.WalletStats) string {
	clauses := signatureClauses(stats)
	if len(clauses) == 0 {
		return "normal wallet activity"
	}
	return strings.Join(clauses, " ")
}

// signatureClauses returns the individual behavior clauses for a wallet.
func signatureClauses(stats *chain.WalletStats) []string {
	var clauses []string

	if stats.TxCount == 0 {
		clauses = append(clauses, "inactive wallet")
	}
	if stats.Balance == 0 && stats.TxCount > 0 {
		clauses = append(clauses, "emptied wallet")
	}
	if stats.IncomingCount > 0 && stats.OutgoingCount == 0 {
		clauses = append(clauses, "accumulation pattern")
	}
	if stats.OutgoingCount > 0 && stats.IncomingCount == 0 {
		clauses = append(clauses, "distribution pattern")
	}
	if stats.UniqueAddressCount == 2 {
		clauses = append(clauses, "isolated network")
	}
	if stats.UniqueAddressCount > 20 {
		clauses = append(clauses, "diverse network")
	}
	if stats.AvgTimeBetweenTx > 0 && stats.AvgTimeBetweenTx < 300 {
		clauses = append(clauses, "automated/bot pattern")
	}
	if stats.AvgTimeBetweenTx > 86400 {
		clauses = append(clauses, "infrequent activity")
	}
	if len(stats.Amounts) > 0 {
		maxAmount := stats.Amounts[0]
		sum := 0.0
		for _, a := range stats.Amounts {
			if a > maxAmount {
				maxAmount = a
			}
			sum += a
		}
		if maxAmount > 100 {
			clauses = append(clauses, "high-value transfers")
		}
		if sum/float64(len(stats.Amounts)) < 0.001 {
			clauses = append(clauses, "micro-transaction pattern")
		}
	}

	return clauses
}
