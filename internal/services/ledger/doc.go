/*
Package ledger implements the account-mutation core: per-user balances plus
an append-only operation history, with five operations: deposit, withdraw,
transfer, balance inquiry and history query.

Every mutation runs inside one store transaction. The account rows involved
are fetched under exclusive row locks, validated, mutated and recorded in the
ledger as a single atomic unit; any failure aborts with no partial effect.

For operations touching two accounts, locks are always acquired in ascending
user-id order (see LockOrder), so concurrent transfers over the same pair can
never wait on each other in a cycle.

Usage:

	svc := ledger.NewService(repo, cache)

	balance, err := svc.GetBalance(ctx, userID)
	err = svc.Deposit(ctx, userID, amount)
	err = svc.Withdraw(ctx, userID, amount)
	err = svc.Transfer(ctx, fromUserID, toUserID, amount)
	ops, err := svc.GetHistory(ctx, userID, from, to)

Error Handling:

The service returns sentinel errors callers can branch on:
  - ErrAccountNotFound: the account (or a transfer counterparty) is missing
  - ErrInsufficientFunds: balance is less than the requested amount
  - ErrSameAccountTransfer: transfer between identical accounts
  - ErrInvalidRange: history range with from after to
  - ErrInvalidAmount: non-positive amount
  - ErrLockTimeout: an account lock could not be obtained in time
  - ErrStoreFailure: the underlying store failed; the operation did not apply
*/
package ledger
