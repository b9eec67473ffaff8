package repositories

import "errors"

// Repository errors
var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountExists    = errors.New("account already exists")
	ErrLockTimeout      = errors.New("account lock wait timed out")
	ErrNotInTransaction = errors.New("operation requires a transaction")
)
