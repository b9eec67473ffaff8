package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankapi/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// pgLockNotAvailable is the SQLSTATE Postgres raises when lock_timeout fires.
const pgLockNotAvailable = "55P03"

type ledgerRepository struct {
	db          *gorm.DB
	lockTimeout time.Duration
	inTx        bool
}

// NewLedgerRepository creates the Postgres-backed ledger store. lockTimeout
// bounds how long a row-lock acquisition may wait inside a transaction;
// zero disables the bound.
func NewLedgerRepository(db *gorm.DB, lockTimeout time.Duration) LedgerRepository {
	return &ledgerRepository{
		db:          db,
		lockTimeout: lockTimeout,
	}
}

func (r *ledgerRepository) GetAccount(ctx context.Context, userID uint64) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *ledgerRepository) GetAccountForUpdate(ctx context.Context, userID uint64) (*models.Account, error) {
	if !r.inTx {
		return nil, ErrNotInTransaction
	}
	var account models.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		if isLockNotAvailable(err) {
			return nil, ErrLockTimeout
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return &account, nil
}

func (r *ledgerRepository) UpdateBalance(ctx context.Context, account *models.Account) error {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("user_id = ?", account.UserID).
		Update("balance", account.Balance)
	if result.Error != nil {
		return fmt.Errorf("failed to update balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *ledgerRepository) CreateOperation(ctx context.Context, op *models.Operation) error {
	if err := r.db.WithContext(ctx).Create(op).Error; err != nil {
		return fmt.Errorf("failed to create operation: %w", err)
	}
	return nil
}

func (r *ledgerRepository) ListOperations(ctx context.Context, userID uint64, from, to time.Time) ([]models.Operation, error) {
	var ops []models.Operation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at BETWEEN ? AND ?", userID, from, to).
		Order("created_at DESC").
		Order("id DESC").
		Find(&ops).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return ops, nil
}

func (r *ledgerRepository) ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockTimeout > 0 {
			// SET LOCAL scopes the bound to this transaction only.
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}
		txRepo := &ledgerRepository{db: tx, lockTimeout: r.lockTimeout, inTx: true}
		return fn(txRepo)
	})
}

func isLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable
}
