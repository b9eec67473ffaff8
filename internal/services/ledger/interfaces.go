package ledger

import (
	"context"
	"time"

	"bankapi/internal/models"

	"github.com/shopspring/decimal"
)

// Service defines the ledger core interface
type Service interface {
	// Balance operations
	GetBalance(ctx context.Context, userID uint64) (decimal.Decimal, error)

	// Mutations
	Deposit(ctx context.Context, userID uint64, amount decimal.Decimal) error
	Withdraw(ctx context.Context, userID uint64, amount decimal.Decimal) error
	Transfer(ctx context.Context, fromUserID, toUserID uint64, amount decimal.Decimal) error

	// History. Nil bounds default to the epoch and to the current instant.
	GetHistory(ctx context.Context, userID uint64, from, to *time.Time) ([]models.Operation, error)
}

// BalanceCache is the read-path cache consulted by GetBalance and
// invalidated after every committed mutation. Every Invalidate bumps the
// account's version; SetIfVersion writes a balance back only if the version
// still matches the one read before the store fetch, so a slow reader can
// never repopulate the cache with a balance that predates a committed
// mutation.
type BalanceCache interface {
	Get(ctx context.Context, userID uint64) (decimal.Decimal, bool, error)
	Version(ctx context.Context, userID uint64) (int64, error)
	SetIfVersion(ctx context.Context, userID uint64, balance decimal.Decimal, version int64) error
	Invalidate(ctx context.Context, userIDs ...uint64) error
}

// NoopBalanceCache satisfies BalanceCache without caching anything.
type NoopBalanceCache struct{}

func (NoopBalanceCache) Get(ctx context.Context, userID uint64) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}

func (NoopBalanceCache) Version(ctx context.Context, userID uint64) (int64, error) {
	return 0, nil
}

func (NoopBalanceCache) SetIfVersion(ctx context.Context, userID uint64, balance decimal.Decimal, version int64) error {
	return nil
}

func (NoopBalanceCache) Invalidate(ctx context.Context, userIDs ...uint64) error {
	return nil
}
