package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// BalanceCache is the read-path cache for account balances. Balances are
// stored as their exact decimal string form; every committed mutation of an
// account must invalidate its entry.
//
// Each account also carries a version counter. Invalidate bumps it, and
// SetIfVersion only stores a balance while the counter still matches the
// value read before the backing-store fetch. A reader that raced a committed
// mutation therefore cannot write its pre-mutation balance back into the
// cache.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Version keys outlive balance entries so that a reader holding an old
// version cannot win a compare after the counter expired and reset.
const versionTTL = 24 * time.Hour

// An absent version key counts as version 0.
var setIfVersionScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current == false then current = '0' end
if current ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached balance and whether the key was present.
func (c *BalanceCache) Get(ctx context.Context, userID uint64) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, balanceKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("failed to get cached balance: %w", err)
	}
	balance, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to parse cached balance: %w", err)
	}
	return balance, true, nil
}

// Version returns the current invalidation counter for an account.
func (c *BalanceCache) Version(ctx context.Context, userID uint64) (int64, error) {
	version, err := c.client.Get(ctx, versionKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance cache version: %w", err)
	}
	return version, nil
}

// SetIfVersion stores the balance only if no Invalidate ran since version was
// read. The compare and the write happen in one script, so they are atomic.
func (c *BalanceCache) SetIfVersion(ctx context.Context, userID uint64, balance decimal.Decimal, version int64) error {
	keys := []string{balanceKey(userID), versionKey(userID)}
	return setIfVersionScript.Run(ctx, c.client, keys,
		version, balance.String(), c.ttl.Milliseconds()).Err()
}

// Invalidate drops the cached balances for the given users and bumps their
// version counters.
func (c *BalanceCache) Invalidate(ctx context.Context, userIDs ...uint64) error {
	if len(userIDs) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for _, userID := range userIDs {
		pipe.Del(ctx, balanceKey(userID))
		pipe.Incr(ctx, versionKey(userID))
		pipe.Expire(ctx, versionKey(userID), versionTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// HealthCheck pings Redis.
func (c *BalanceCache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *BalanceCache) Close() error {
	return c.client.Close()
}

func balanceKey(userID uint64) string {
	return fmt.Sprintf("balance:%d", userID)
}

func versionKey(userID uint64) string {
	return fmt.Sprintf("balance:%d:ver", userID)
}
