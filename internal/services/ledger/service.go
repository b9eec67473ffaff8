package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bankapi/internal/models"
	"bankapi/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type service struct {
	repo  repositories.LedgerRepository
	cache BalanceCache
	clock entryClock
}

// NewService creates a new ledger service. The service itself is stateless:
// every operation is a function of the store's current state and its
// arguments, so one instance can serve any number of concurrent callers.
func NewService(repo repositories.LedgerRepository, cache BalanceCache) Service {
	if repo == nil {
		panic("repo is required")
	}
	if cache == nil {
		cache = NoopBalanceCache{}
	}
	return &service{
		repo:  repo,
		cache: cache,
	}
}

func (s *service) GetBalance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	if balance, ok, err := s.cache.Get(ctx, userID); err == nil && ok {
		return balance, nil
	}

	// Capture the invalidation version before the store read. A mutation that
	// commits between the read and the write-back bumps the version, and the
	// write-back is discarded instead of caching a stale balance.
	version, verr := s.cache.Version(ctx, userID)

	account, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return decimal.Zero, s.translate(err)
	}

	if verr != nil {
		log.Printf("failed to read balance cache version for user %d: %v", userID, verr)
	} else if err := s.cache.SetIfVersion(ctx, userID, account.Balance, version); err != nil {
		log.Printf("failed to cache balance for user %d: %v", userID, err)
	}
	return account.Balance, nil
}

func (s *service) Deposit(ctx context.Context, userID uint64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	err := s.repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
		account, err := tx.GetAccountForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		account.Balance = account.Balance.Add(amount)
		if err := tx.UpdateBalance(ctx, account); err != nil {
			return err
		}

		return tx.CreateOperation(ctx, &models.Operation{
			UserID:    userID,
			Type:      models.OperationDeposit,
			Amount:    amount,
			CreatedAt: s.clock.Now(),
		})
	})
	if err != nil {
		return s.translate(err)
	}

	s.invalidate(ctx, userID)
	return nil
}

func (s *service) Withdraw(ctx context.Context, userID uint64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	err := s.repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
		account, err := tx.GetAccountForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		// Strict less-than: withdrawing the exact balance is allowed and
		// leaves the account at zero.
		if account.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		account.Balance = account.Balance.Sub(amount)
		if err := tx.UpdateBalance(ctx, account); err != nil {
			return err
		}

		return tx.CreateOperation(ctx, &models.Operation{
			UserID:    userID,
			Type:      models.OperationWithdraw,
			Amount:    amount,
			CreatedAt: s.clock.Now(),
		})
	})
	if err != nil {
		return s.translate(err)
	}

	s.invalidate(ctx, userID)
	return nil
}

func (s *service) Transfer(ctx context.Context, fromUserID, toUserID uint64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	// Rejected before any lock is requested; LockOrder must never see a pair
	// of identical ids.
	if fromUserID == toUserID {
		return ErrSameAccountTransfer
	}

	err := s.repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
		first, second := LockOrder(fromUserID, toUserID)

		accounts := make(map[uint64]*models.Account, 2)
		for _, id := range [2]uint64{first, second} {
			account, err := tx.GetAccountForUpdate(ctx, id)
			if err != nil {
				if errors.Is(err, repositories.ErrAccountNotFound) {
					// Do not disclose which side is missing.
					return fmt.Errorf("%w: sender or receiver", ErrAccountNotFound)
				}
				return err
			}
			accounts[id] = account
		}

		sender := accounts[fromUserID]
		receiver := accounts[toUserID]

		if sender.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		sender.Balance = sender.Balance.Sub(amount)
		receiver.Balance = receiver.Balance.Add(amount)
		if err := tx.UpdateBalance(ctx, sender); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, receiver); err != nil {
			return err
		}

		// Both entries share one timestamp and one reference id.
		stampedAt := s.clock.Now()
		reference := uuid.NewString()

		out := &models.Operation{
			UserID:        fromUserID,
			Type:          models.OperationTransferOut,
			Amount:        amount,
			RelatedUserID: &toUserID,
			Reference:     reference,
			CreatedAt:     stampedAt,
		}
		if err := tx.CreateOperation(ctx, out); err != nil {
			return err
		}

		in := &models.Operation{
			UserID:        toUserID,
			Type:          models.OperationTransferIn,
			Amount:        amount,
			RelatedUserID: &fromUserID,
			Reference:     reference,
			CreatedAt:     stampedAt,
		}
		return tx.CreateOperation(ctx, in)
	})
	if err != nil {
		return s.translate(err)
	}

	s.invalidate(ctx, fromUserID, toUserID)
	return nil
}

func (s *service) GetHistory(ctx context.Context, userID uint64, from, to *time.Time) ([]models.Operation, error) {
	if _, err := s.repo.GetAccount(ctx, userID); err != nil {
		return nil, s.translate(err)
	}

	effectiveFrom := time.Unix(0, 0).UTC()
	if from != nil {
		effectiveFrom = from.UTC()
	}
	effectiveTo := s.clock.Now()
	if to != nil {
		effectiveTo = to.UTC()
	}

	if effectiveFrom.After(effectiveTo) {
		return nil, ErrInvalidRange
	}

	ops, err := s.repo.ListOperations(ctx, userID, effectiveFrom, effectiveTo)
	if err != nil {
		return nil, s.translate(err)
	}
	return ops, nil
}

// invalidate drops cached balances after a committed mutation. Cache errors
// are logged, not returned: the commit already happened.
func (s *service) invalidate(ctx context.Context, userIDs ...uint64) {
	if err := s.cache.Invalidate(ctx, userIDs...); err != nil {
		log.Printf("failed to invalidate balance cache for users %v: %v", userIDs, err)
	}
}

// translate maps repository sentinels to service sentinels and wraps
// anything unrecognised as a store failure. Service sentinels raised inside
// a transaction closure pass through unchanged.
func (s *service) translate(err error) error {
	switch {
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrLockTimeout):
		return err
	case errors.Is(err, repositories.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, repositories.ErrLockTimeout):
		return ErrLockTimeout
	default:
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
}
