package credits

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

const testAddr = "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"

// ledgers returns each Ledger implementation under a common name so the
// behavioral tests run identically against both.
func ledgers(t *testing.T) map[string]Ledger {
	t.Helper()

	mr := miniredis.RunT(t)
	rl, err := NewRedisLedger(context.Background(), mr.Addr(), 10, 1000)
	if err != nil {
		t.Fatalf("redis ledger: %v", err)
	}
	t.Cleanup(func() { rl.Close() })

	return map[string]Ledger{
		"memory": NewMemoryLedger(10, 1000),
		"redis":  rl,
	}
}

func TestFreeTierGrantedOnFirstContact(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			bal, err := l.Balance(t.Context(), testAddr)
			if err != nil {
				t.Fatalf("balance: %v", err)
			}
			if bal != 10 {
				t.Errorf("first contact balance = %d, want 10", bal)
			}
		})
	}
}

func TestDebitAndCredit(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			bal, err := l.Debit(ctx, testAddr, 3)
			if err != nil {
				t.Fatalf("debit: %v", err)
			}
			if bal != 7 {
				t.Errorf("after debit balance = %d, want 7", bal)
			}

			bal, err = l.Credit(ctx, testAddr, 5)
			if err != nil {
				t.Fatalf("credit: %v", err)
			}
			if bal != 12 {
				t.Errorf("after credit balance = %d, want 12", bal)
			}
		})
	}
}

func TestDebitInsufficientLeavesBalanceUntouched(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			if _, err := l.Debit(ctx, testAddr, 11); !errors.Is(err, ErrInsufficientCredits) {
				t.Fatalf("expected ErrInsufficientCredits, got %v", err)
			}

			bal, err := l.Balance(ctx, testAddr)
			if err != nil {
				t.Fatalf("balance: %v", err)
			}
			if bal != 10 {
				t.Errorf("balance changed by rejected debit: %d, want 10", bal)
			}
		})
	}
}

func TestAddressCaseInsensitive(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			if _, err := l.Debit(ctx, testAddr, 4); err != nil {
				t.Fatalf("debit: %v", err)
			}

			// Same account through the lower-cased form
			bal, err := l.Balance(ctx, "0x742d35cc6634c0532925a3b844bc9e7595f0beb0")
			if err != nil {
				t.Fatalf("balance: %v", err)
			}
			if bal != 6 {
				t.Errorf("lower-cased lookup balance = %d, want 6", bal)
			}
		})
	}
}

func TestTiers(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			if err := l.SetTier(ctx, testAddr, TierPro); err != nil {
				t.Fatalf("set pro tier: %v", err)
			}
			bal, _ := l.Balance(ctx, testAddr)
			if bal != 1000 {
				t.Errorf("pro balance = %d, want 1000", bal)
			}

			if err := l.SetTier(ctx, testAddr, TierEnterprise); err != nil {
				t.Fatalf("set enterprise tier: %v", err)
			}
			bal, err := l.Debit(ctx, testAddr, 1_000_000)
			if err != nil {
				t.Fatalf("enterprise debit should never fail: %v", err)
			}
			if bal != Unlimited {
				t.Errorf("enterprise debit balance = %d, want %d", bal, Unlimited)
			}

			if err := l.SetTier(ctx, testAddr, Tier("platinum")); err == nil {
				t.Error("expected error for unknown tier")
			}
		})
	}
}

func TestConcurrentDebitsNeverOverspend(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := l.SetTier(ctx, testAddr, TierFree); err != nil {
				t.Fatalf("set tier: %v", err)
			}

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
			)
			for i := 0; i < 25; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := l.Debit(ctx, testAddr, 1); err == nil {
						mu.Lock()
						succeeded++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			// Free tier holds exactly 10 credits
			if succeeded != 10 {
				t.Errorf("%d debits succeeded, want 10", succeeded)
			}

			bal, _ := l.Balance(ctx, testAddr)
			if bal != 0 {
				t.Errorf("final balance = %d, want 0", bal)
			}
		})
	}
}
