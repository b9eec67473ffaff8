package ledger

import "errors"

// Service errors
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrSameAccountTransfer = errors.New("cannot transfer to the same account")
	ErrInvalidRange        = errors.New("from must not be after to")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrLockTimeout         = errors.New("timed out waiting for account lock")
	ErrStoreFailure        = errors.New("ledger store failure")
)
