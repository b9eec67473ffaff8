package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bankapi/internal/models"
	"bankapi/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func newTestService(t *testing.T, balances map[uint64]string) Service {
	t.Helper()
	store := repositories.NewMemoryLedger(2 * time.Second)
	for userID, balance := range balances {
		require.NoError(t, store.CreateAccount(userID, dec(t, balance)))
	}
	return NewService(store, nil)
}

func history(t *testing.T, svc Service, userID uint64) []models.Operation {
	t.Helper()
	ops, err := svc.GetHistory(context.Background(), userID, nil, nil)
	require.NoError(t, err)
	return ops
}

func TestGetBalance(t *testing.T) {
	svc := newTestService(t, map[uint64]string{1: "1000.00"})
	ctx := context.Background()

	t.Run("returns current balance", func(t *testing.T) {
		balance, err := svc.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec(t, "1000.00")))
	})

	t.Run("is idempotent without intervening mutation", func(t *testing.T) {
		first, err := svc.GetBalance(ctx, 1)
		require.NoError(t, err)
		second, err := svc.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.True(t, first.Equal(second))
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := svc.GetBalance(ctx, 404)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestDeposit(t *testing.T) {
	ctx := context.Background()

	t.Run("updates balance and writes one entry", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "100.00"})

		require.NoError(t, svc.Deposit(ctx, 1, dec(t, "25.00")))

		balance, err := svc.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec(t, "125.00")))

		ops := history(t, svc, 1)
		require.Len(t, ops, 1)
		assert.Equal(t, models.OperationDeposit, ops[0].Type)
		assert.True(t, ops[0].Amount.Equal(dec(t, "25.00")))
		assert.Nil(t, ops[0].RelatedUserID)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "100.00"})
		assert.ErrorIs(t, svc.Deposit(ctx, 1, decimal.Zero), ErrInvalidAmount)
		assert.ErrorIs(t, svc.Deposit(ctx, 1, dec(t, "-5.00")), ErrInvalidAmount)
	})

	t.Run("unknown account", func(t *testing.T) {
		svc := newTestService(t, nil)
		assert.ErrorIs(t, svc.Deposit(ctx, 9, dec(t, "10.00")), ErrAccountNotFound)
	})
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("updates balance and writes one entry", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "1000.00"})

		require.NoError(t, svc.Withdraw(ctx, 1, dec(t, "30.00")))

		balance, err := svc.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec(t, "970.00")))

		ops := history(t, svc, 1)
		require.Len(t, ops, 1)
		assert.Equal(t, models.OperationWithdraw, ops[0].Type)
		assert.True(t, ops[0].Amount.Equal(dec(t, "30.00")))
	})

	t.Run("insufficient funds leaves no trace", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "10.00"})

		err := svc.Withdraw(ctx, 1, dec(t, "20.00"))
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		balance, err := svc.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec(t, "10.00")))
		assert.Empty(t, history(t, svc, 1))
	})

	t.Run("withdrawing the exact balance zeroes the account", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "50.00"})

		require.NoError(t, svc.Withdraw(ctx, 1, dec(t, "50.00")))

		balance, err := svc.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("unknown account", func(t *testing.T) {
		svc := newTestService(t, nil)
		assert.ErrorIs(t, svc.Withdraw(ctx, 9, dec(t, "10.00")), ErrAccountNotFound)
	})
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("moves money and writes a cross-referenced pair", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "100.00", 2: "20.00"})

		require.NoError(t, svc.Transfer(ctx, 1, 2, dec(t, "50.00")))

		senderBalance, err := svc.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.True(t, senderBalance.Equal(dec(t, "50.00")))

		receiverBalance, err := svc.GetBalance(ctx, 2)
		require.NoError(t, err)
		assert.True(t, receiverBalance.Equal(dec(t, "70.00")))

		senderOps := history(t, svc, 1)
		require.Len(t, senderOps, 1)
		out := senderOps[0]
		assert.Equal(t, models.OperationTransferOut, out.Type)
		assert.True(t, out.Amount.Equal(dec(t, "50.00")))
		require.NotNil(t, out.RelatedUserID)
		assert.Equal(t, uint64(2), *out.RelatedUserID)

		receiverOps := history(t, svc, 2)
		require.Len(t, receiverOps, 1)
		in := receiverOps[0]
		assert.Equal(t, models.OperationTransferIn, in.Type)
		assert.True(t, in.Amount.Equal(dec(t, "50.00")))
		require.NotNil(t, in.RelatedUserID)
		assert.Equal(t, uint64(1), *in.RelatedUserID)

		// Both entries share one timestamp and one reference.
		assert.True(t, out.CreatedAt.Equal(in.CreatedAt))
		assert.NotEmpty(t, out.Reference)
		assert.Equal(t, out.Reference, in.Reference)
	})

	t.Run("same account is rejected before any lock", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "100.00"})

		err := svc.Transfer(ctx, 1, 1, dec(t, "10.00"))
		assert.ErrorIs(t, err, ErrSameAccountTransfer)

		balance, err := svc.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec(t, "100.00")))
		assert.Empty(t, history(t, svc, 1))
	})

	t.Run("insufficient funds aborts both sides", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "10.00", 2: "20.00"})

		err := svc.Transfer(ctx, 1, 2, dec(t, "50.00"))
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		senderBalance, err := svc.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.True(t, senderBalance.Equal(dec(t, "10.00")))
		receiverBalance, err := svc.GetBalance(ctx, 2)
		require.NoError(t, err)
		assert.True(t, receiverBalance.Equal(dec(t, "20.00")))
		assert.Empty(t, history(t, svc, 1))
		assert.Empty(t, history(t, svc, 2))
	})

	t.Run("missing counterparty does not say which side", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "100.00"})

		err := svc.Transfer(ctx, 1, 42, dec(t, "10.00"))
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NotContains(t, err.Error(), "42")

		err = svc.Transfer(ctx, 42, 1, dec(t, "10.00"))
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NotContains(t, err.Error(), "42")
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "100.00", 2: "20.00"})
		assert.ErrorIs(t, svc.Transfer(ctx, 1, 2, decimal.Zero), ErrInvalidAmount)
	})
}

func TestGetHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults cover an entry dated now", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "100.00"})
		require.NoError(t, svc.Deposit(ctx, 1, dec(t, "5.00")))

		ops, err := svc.GetHistory(ctx, 1, nil, nil)
		require.NoError(t, err)
		require.Len(t, ops, 1)
		assert.Equal(t, models.OperationDeposit, ops[0].Type)
	})

	t.Run("inverted range", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "100.00"})

		from := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		_, err := svc.GetHistory(ctx, 1, &from, &to)
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("unknown account checked before range", func(t *testing.T) {
		svc := newTestService(t, nil)
		_, err := svc.GetHistory(ctx, 9, nil, nil)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("most recent first", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "100.00"})
		require.NoError(t, svc.Deposit(ctx, 1, dec(t, "1.00")))
		require.NoError(t, svc.Deposit(ctx, 1, dec(t, "2.00")))
		require.NoError(t, svc.Deposit(ctx, 1, dec(t, "3.00")))

		ops, err := svc.GetHistory(ctx, 1, nil, nil)
		require.NoError(t, err)
		require.Len(t, ops, 3)
		assert.True(t, ops[0].Amount.Equal(dec(t, "3.00")))
		assert.True(t, ops[1].Amount.Equal(dec(t, "2.00")))
		assert.True(t, ops[2].Amount.Equal(dec(t, "1.00")))
		for i := 1; i < len(ops); i++ {
			assert.False(t, ops[i-1].CreatedAt.Before(ops[i].CreatedAt))
		}
	})

	t.Run("range bounds are inclusive", func(t *testing.T) {
		svc := newTestService(t, map[uint64]string{1: "100.00"})
		require.NoError(t, svc.Deposit(ctx, 1, dec(t, "5.00")))

		all, err := svc.GetHistory(ctx, 1, nil, nil)
		require.NoError(t, err)
		require.Len(t, all, 1)

		at := all[0].CreatedAt
		ops, err := svc.GetHistory(ctx, 1, &at, &at)
		require.NoError(t, err)
		assert.Len(t, ops, 1)
	})
}

// versionedBalanceCache is an in-memory BalanceCache with the same
// invalidation-counter contract as the Redis implementation.
type versionedBalanceCache struct {
	mu       sync.Mutex
	balances map[uint64]decimal.Decimal
	versions map[uint64]int64
}

func newVersionedBalanceCache() *versionedBalanceCache {
	return &versionedBalanceCache{
		balances: make(map[uint64]decimal.Decimal),
		versions: make(map[uint64]int64),
	}
}

func (c *versionedBalanceCache) Get(ctx context.Context, userID uint64) (decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	balance, ok := c.balances[userID]
	return balance, ok, nil
}

func (c *versionedBalanceCache) Version(ctx context.Context, userID uint64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[userID], nil
}

func (c *versionedBalanceCache) SetIfVersion(ctx context.Context, userID uint64, balance decimal.Decimal, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[userID] == version {
		c.balances[userID] = balance
	}
	return nil
}

func (c *versionedBalanceCache) Invalidate(ctx context.Context, userIDs ...uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, userID := range userIDs {
		delete(c.balances, userID)
		c.versions[userID]++
	}
	return nil
}

// gatedStore pauses the first uncached balance read after it has fetched the
// account, so a mutation can commit before the read writes the cache back.
type gatedStore struct {
	repositories.LedgerRepository
	arm     atomic.Bool
	fetched chan struct{}
	resume  chan struct{}
}

func (g *gatedStore) GetAccount(ctx context.Context, userID uint64) (*models.Account, error) {
	account, err := g.LedgerRepository.GetAccount(ctx, userID)
	if g.arm.CompareAndSwap(true, false) {
		close(g.fetched)
		<-g.resume
	}
	return account, err
}

// A balance read that raced a committed withdrawal must not leave its
// pre-withdrawal balance in the cache: subsequent reads have to see the
// committed balance, not a stale entry that lives until the TTL.
func TestGetBalanceDoesNotCacheStaleReads(t *testing.T) {
	store := repositories.NewMemoryLedger(2 * time.Second)
	require.NoError(t, store.CreateAccount(1, dec(t, "100.00")))

	gated := &gatedStore{
		LedgerRepository: store,
		fetched:          make(chan struct{}),
		resume:           make(chan struct{}),
	}
	gated.arm.Store(true)
	svc := NewService(gated, newVersionedBalanceCache())
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := svc.GetBalance(ctx, 1); err != nil {
			t.Errorf("paused balance read: %v", err)
		}
	}()

	// The reader holds the pre-withdrawal balance but has not written it back
	// yet. Commit a withdrawal, then let the reader finish.
	<-gated.fetched
	require.NoError(t, svc.Withdraw(ctx, 1, dec(t, "30.00")))
	close(gated.resume)
	<-done

	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec(t, "70.00")), "got stale balance %s", balance)
}
