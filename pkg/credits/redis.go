package credits

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "vigil:credits:"

// debitScript performs grant-on-first-contact plus compare-and-debit in one
// atomic step. Returns the remaining balance, -1 for unlimited accounts, or
// -2 when the balance cannot cover the amount.
var debitScript = redis.NewScript(`
local bal = redis.call('GET', KEYS[1])
if not bal then
  bal = ARGV[2]
  redis.call('SET', KEYS[1], bal)
end
bal = tonumber(bal)
if bal == -1 then
  return -1
end
local amount = tonumber(ARGV[1])
if bal < amount then
  return -2
end
return redis.call('DECRBY', KEYS[1], amount)
`)

// RedisLedger is the shared Ledger for multi-instance deployments.
// Debits run server-side via a Lua script so concurrent gateways cannot
// double-spend an account.
type RedisLedger struct {
	client    *redis.Client
	freeGrant int64
	proGrant  int64
}

// NewRedisLedger connects to Redis and verifies the connection with a ping
func NewRedisLedger(ctx context.Context, addr string, freeGrant, proGrant int64) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisLedger{client: client, freeGrant: freeGrant, proGrant: proGrant}, nil
}

// Close releases the Redis connection pool
func (r *RedisLedger) Close() error {
	return r.client.Close()
}

func (r *RedisLedger) key(address string) string {
	return keyPrefix + normalizeKey(address)
}

func (r *RedisLedger) Balance(ctx context.Context, address string) (int64, error) {
	key := r.key(address)
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// First contact: grant the free tier
		if err := r.client.Set(ctx, key, r.freeGrant, 0).Err(); err != nil {
			return 0, fmt.Errorf("grant free tier for %s: %w", address, err)
		}
		return r.freeGrant, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance lookup for %s: %w", address, err)
	}
	bal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt balance for %s: %w", address, err)
	}
	return bal, nil
}

func (r *RedisLedger) Debit(ctx context.Context, address string, amount int64) (int64, error) {
	res, err := debitScript.Run(ctx, r.client, []string{r.key(address)}, amount, r.freeGrant).Int64()
	if err != nil {
		return 0, fmt.Errorf("debit %d from %s: %w", amount, address, err)
	}
	if res == -2 {
		bal, berr := r.Balance(ctx, address)
		if berr != nil {
			bal = 0
		}
		return bal, ErrInsufficientCredits
	}
	return res, nil
}

func (r *RedisLedger) Credit(ctx context.Context, address string, amount int64) (int64, error) {
	bal, err := r.Balance(ctx, address)
	if err != nil {
		return 0, err
	}
	if bal == Unlimited {
		return Unlimited, nil
	}
	newBal, err := r.client.IncrBy(ctx, r.key(address), amount).Result()
	if err != nil {
		return 0, fmt.Errorf("credit %d to %s: %w", amount, address, err)
	}
	return newBal, nil
}

func (r *RedisLedger) SetTier(ctx context.Context, address string, tier Tier) error {
	var bal int64
	switch tier {
	case TierFree:
		bal = r.freeGrant
	case TierPro:
		bal = r.proGrant
	case TierEnterprise:
		bal = Unlimited
	default:
		return errors.New("unknown tier: " + string(tier))
	}
	if err := r.client.Set(ctx, r.key(address), bal, 0).Err(); err != nil {
		return fmt.Errorf("set tier %s for %s: %w", tier, address, err)
	}
	return nil
}
