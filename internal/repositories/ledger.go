// Package repositories provides data access layer implementations.
// It handles all database operations and data persistence logic.
package repositories

import (
	"context"
	"time"

	"bankapi/internal/models"
)

// LedgerRepository is the store contract the ledger core runs on: an accounts
// table reachable through exclusive row locks and an append-only operations
// table, both mutated inside a single atomic unit.
//
// GetAccountForUpdate is only valid inside ExecuteInTransaction; the lock it
// takes is held until the enclosing transaction commits or rolls back.
type LedgerRepository interface {
	// GetAccount fetches an account without locking it.
	GetAccount(ctx context.Context, userID uint64) (*models.Account, error)

	// GetAccountForUpdate fetches an account under its exclusive row lock,
	// blocking until the lock is granted or the configured wait bound
	// expires (ErrLockTimeout).
	GetAccountForUpdate(ctx context.Context, userID uint64) (*models.Account, error)

	// UpdateBalance persists a new balance for the account.
	UpdateBalance(ctx context.Context, account *models.Account) error

	// CreateOperation appends one ledger entry.
	CreateOperation(ctx context.Context, op *models.Operation) error

	// ListOperations returns the user's ledger entries with created_at in
	// [from, to], most recent first, ties broken by id descending.
	ListOperations(ctx context.Context, userID uint64, from, to time.Time) ([]models.Operation, error)

	// ExecuteInTransaction runs fn inside one atomic unit. Every write fn
	// performs is applied on success and discarded entirely on error.
	ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error
}
