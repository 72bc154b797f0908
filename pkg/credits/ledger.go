// Package credits implements the usage-credit ledger. Every paid operation
// performs an atomic compare-and-debit; first-time users are granted the
// free tier on first contact.
package credits

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Unlimited marks an account that is never debited (enterprise tier)
const Unlimited int64 = -1

// Tier identifies a credit plan
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ErrInsufficientCredits is returned by Debit when the balance cannot
// cover the requested amount. Callers surface this as HTTP 402.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Ledger is the credit collaborator consumed by the gateway.
// Implementations must make Debit atomic under concurrent callers.
type Ledger interface {
	// Balance returns the current balance, granting the free tier to
	// addresses seen for the first time.
	Balance(ctx context.Context, address string) (int64, error)

	// Debit atomically subtracts amount and returns the remaining balance.
	// Returns ErrInsufficientCredits without changing the balance when the
	// account cannot cover the amount. Unlimited accounts always succeed.
	Debit(ctx context.Context, address string, amount int64) (int64, error)

	// Credit adds amount to the balance and returns the new balance.
	// Crediting an unlimited account is a no-op.
	Credit(ctx context.Context, address string, amount int64) (int64, error)

	// SetTier assigns a plan, replacing the current balance with the
	// tier's grant (or Unlimited for enterprise).
	SetTier(ctx context.Context, address string, tier Tier) error
}

// normalizeKey lower-cases addresses so checksummed and plain forms share
// one account.
func normalizeKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// MemoryLedger is the in-process Ledger used when no Redis address is
// configured. Suitable for single-instance deployments and tests.
type MemoryLedger struct {
	mu        sync.Mutex
	balances  map[string]int64
	freeGrant int64
	proGrant  int64
}

// NewMemoryLedger creates an in-memory ledger with the given tier grants
func NewMemoryLedger(freeGrant, proGrant int64) *MemoryLedger {
	return &MemoryLedger{
		balances:  make(map[string]int64),
		freeGrant: freeGrant,
		proGrant:  proGrant,
	}
}

// ensureLocked grants the free tier on first contact. Caller holds mu.
func (m *MemoryLedger) ensureLocked(key string) int64 {
	bal, ok := m.balances[key]
	if !ok {
		bal = m.freeGrant
		m.balances[key] = bal
	}
	return bal
}

func (m *MemoryLedger) Balance(_ context.Context, address string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(normalizeKey(address)), nil
}

func (m *MemoryLedger) Debit(_ context.Context, address string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalizeKey(address)
	bal := m.ensureLocked(key)
	if bal == Unlimited {
		return Unlimited, nil
	}
	if bal < amount {
		return bal, ErrInsufficientCredits
	}
	bal -= amount
	m.balances[key] = bal
	return bal, nil
}

func (m *MemoryLedger) Credit(_ context.Context, address string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalizeKey(address)
	bal := m.ensureLocked(key)
	if bal == Unlimited {
		return Unlimited, nil
	}
	bal += amount
	m.balances[key] = bal
	return bal, nil
}

func (m *MemoryLedger) SetTier(_ context.Context, address string, tier Tier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalizeKey(address)
	switch tier {
	case TierFree:
		m.balances[key] = m.freeGrant
	case TierPro:
		m.balances[key] = m.proGrant
	case TierEnterprise:
		m.balances[key] = Unlimited
	default:
		return errors.New("unknown tier: " + string(tier))
	}
	return nil
}
