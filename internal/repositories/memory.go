package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"bankapi/internal/models"

	"github.com/shopspring/decimal"
)

// MemoryLedger is an in-process LedgerRepository. It honours the same
// contract as the Postgres implementation: exclusive per-account locks with a
// bounded wait, and all-or-nothing application of the writes staged inside
// ExecuteInTransaction. Used by the test suite and for running the service
// without a database.
type MemoryLedger struct {
	mu          sync.RWMutex
	accounts    map[uint64]*models.Account
	operations  []models.Operation
	nextOpID    uint64
	locks       map[uint64]chan struct{}
	lockTimeout time.Duration
}

// NewMemoryLedger creates an empty in-memory ledger store. lockTimeout bounds
// the wait for an account lock; zero means wait indefinitely.
func NewMemoryLedger(lockTimeout time.Duration) *MemoryLedger {
	return &MemoryLedger{
		accounts:    make(map[uint64]*models.Account),
		locks:       make(map[uint64]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

// CreateAccount provisions an account with an opening balance. Account
// creation is not part of the ledger core; this exists for seeding.
func (m *MemoryLedger) CreateAccount(userID uint64, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[userID]; exists {
		return ErrAccountExists
	}
	now := time.Now().UTC()
	m.accounts[userID] = &models.Account{
		UserID:    userID,
		Balance:   balance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (m *MemoryLedger) GetAccount(ctx context.Context, userID uint64) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[userID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

// GetAccountForUpdate is only valid on the transactional view handed to
// ExecuteInTransaction's closure.
func (m *MemoryLedger) GetAccountForUpdate(ctx context.Context, userID uint64) (*models.Account, error) {
	return nil, ErrNotInTransaction
}

func (m *MemoryLedger) UpdateBalance(ctx context.Context, account *models.Account) error {
	return ErrNotInTransaction
}

func (m *MemoryLedger) CreateOperation(ctx context.Context, op *models.Operation) error {
	return ErrNotInTransaction
}

func (m *MemoryLedger) ListOperations(ctx context.Context, userID uint64, from, to time.Time) ([]models.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ops []models.Operation
	for _, op := range m.operations {
		if op.UserID != userID {
			continue
		}
		if op.CreatedAt.Before(from) || op.CreatedAt.After(to) {
			continue
		}
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		if !ops[i].CreatedAt.Equal(ops[j].CreatedAt) {
			return ops[i].CreatedAt.After(ops[j].CreatedAt)
		}
		return ops[i].ID > ops[j].ID
	})
	return ops, nil
}

func (m *MemoryLedger) ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error {
	tx := &memoryTx{
		parent: m,
		staged: make(map[uint64]decimal.Decimal),
	}
	defer tx.releaseLocks()
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *MemoryLedger) lockFor(userID uint64) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		l = make(chan struct{}, 1)
		m.locks[userID] = l
	}
	return l
}

// memoryTx is the transactional view: balance writes and ledger appends are
// staged and only applied if the closure returns nil. Account locks taken
// here are released when the transaction ends, never earlier.
type memoryTx struct {
	parent    *MemoryLedger
	held      []uint64
	staged    map[uint64]decimal.Decimal
	stagedOps []models.Operation
}

func (t *memoryTx) GetAccount(ctx context.Context, userID uint64) (*models.Account, error) {
	return t.parent.GetAccount(ctx, userID)
}

func (t *memoryTx) GetAccountForUpdate(ctx context.Context, userID uint64) (*models.Account, error) {
	if !t.holds(userID) {
		if err := t.acquire(ctx, userID); err != nil {
			return nil, err
		}
	}
	return t.parent.GetAccount(ctx, userID)
}

func (t *memoryTx) UpdateBalance(ctx context.Context, account *models.Account) error {
	if !t.holds(account.UserID) {
		return ErrNotInTransaction
	}
	t.staged[account.UserID] = account.Balance
	return nil
}

func (t *memoryTx) CreateOperation(ctx context.Context, op *models.Operation) error {
	t.stagedOps = append(t.stagedOps, *op)
	return nil
}

func (t *memoryTx) ListOperations(ctx context.Context, userID uint64, from, to time.Time) ([]models.Operation, error) {
	return t.parent.ListOperations(ctx, userID, from, to)
}

func (t *memoryTx) ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error {
	// Nested transactions join the enclosing one.
	return fn(t)
}

func (t *memoryTx) acquire(ctx context.Context, userID uint64) error {
	l := t.parent.lockFor(userID)

	// A nil timeout channel blocks forever, which is the unbounded case.
	var timeout <-chan time.Time
	if t.parent.lockTimeout > 0 {
		timer := time.NewTimer(t.parent.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case l <- struct{}{}:
		t.held = append(t.held, userID)
		return nil
	case <-timeout:
		return ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *memoryTx) holds(userID uint64) bool {
	for _, id := range t.held {
		if id == userID {
			return true
		}
	}
	return false
}

func (t *memoryTx) commit() {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	now := time.Now().UTC()
	for userID, balance := range t.staged {
		if account, ok := t.parent.accounts[userID]; ok {
			account.Balance = balance
			account.UpdatedAt = now
		}
	}
	for _, op := range t.stagedOps {
		t.parent.nextOpID++
		op.ID = t.parent.nextOpID
		t.parent.operations = append(t.parent.operations, op)
	}
}

var (
	_ LedgerRepository = (*MemoryLedger)(nil)
	_ LedgerRepository = (*memoryTx)(nil)
)

func (t *memoryTx) releaseLocks() {
	for i := len(t.held) - 1; i >= 0; i-- {
		<-t.parent.lockFor(t.held[i])
	}
	t.held = nil
}
