package repository

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/errors"
)

// MemoryStore keeps accounts and transactions in process memory. A unit of
// work stages its writes and applies them in one step on commit, so a failed
// unit leaves nothing behind.
type MemoryStore struct {
	state  *memoryState
	tx     *memoryTx
	logger *slog.Logger
}

type memoryState struct {
	mu           sync.RWMutex
	accounts     map[int64]domain.Account
	transactions map[uuid.UUID]domain.Transaction
}

type statusChange struct {
	from domain.TransactionStatus
	to   domain.TransactionStatus
	at   time.Time
}

type memoryTx struct {
	accounts map[int64]domain.Account
	created  map[uuid.UUID]domain.Transaction
	statuses map[uuid.UUID]statusChange
}

var _ domain.Store = (*MemoryStore)(nil)

func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		state: &memoryState{
			accounts:     make(map[int64]domain.Account),
			transactions: make(map[uuid.UUID]domain.Transaction),
		},
		logger: logger,
	}
}

func (s *MemoryStore) Account() domain.AccountRepository {
	return &memoryAccountRepository{store: s}
}

func (s *MemoryStore) Transaction() domain.TransactionRepository {
	return &memoryTransactionRepository{store: s}
}

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(domain.Store) error) error {
	if s.tx != nil {
		return errors.ErrCannotBeginTransaction
	}
	if err := ctx.Err(); err != nil {
		return errors.ErrPersistenceFailure.Wrap(err)
	}

	txStore := &MemoryStore{
		state: s.state,
		tx: &memoryTx{
			accounts: make(map[int64]domain.Account),
			created:  make(map[uuid.UUID]domain.Transaction),
			statuses: make(map[uuid.UUID]statusChange),
		},
		logger: s.logger,
	}

	if err := fn(txStore); err != nil {
		return err
	}

	// A unit of work that outlived its deadline must not commit.
	if err := ctx.Err(); err != nil {
		s.logger.Error("Failed to commit transaction", "error", err)
		return errors.ErrPersistenceFailure.Wrap(err)
	}

	return s.commit(txStore.tx)
}

func (s *MemoryStore) commit(tx *memoryTx) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	for id, change := range tx.statuses {
		current, ok := s.state.transactions[id]
		if _, staged := tx.created[id]; staged {
			continue
		}
		if !ok || current.Status != change.from {
			return errors.ErrPersistenceFailure.Wrap(fmt.Errorf("transaction %s changed concurrently", id))
		}
	}

	for id, account := range tx.accounts {
		s.state.accounts[id] = account
	}
	for id, transaction := range tx.created {
		s.state.transactions[id] = transaction
	}
	for id, change := range tx.statuses {
		transaction := s.state.transactions[id]
		transaction.Status = change.to
		transaction.UpdatedAt = change.at
		s.state.transactions[id] = transaction
	}
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

type memoryAccountRepository struct {
	store *MemoryStore
}

func (r *memoryAccountRepository) CreateAccount(_ context.Context, account *domain.Account) error {
	now := time.Now().UTC()
	s := r.store

	if s.tx != nil {
		if _, err := r.GetAccount(context.Background(), account.ID); err == nil {
			return errors.ErrDuplicateAccount
		}
		account.CreatedAt, account.UpdatedAt = now, now
		s.tx.accounts[account.ID] = *account
		return nil
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.accounts[account.ID]; ok {
		s.logger.Warn("Duplicate account creation attempt", "account_id", account.ID)
		return errors.ErrDuplicateAccount
	}
	account.CreatedAt, account.UpdatedAt = now, now
	s.state.accounts[account.ID] = *account
	s.logger.Info("Account created successfully", "account_id", account.ID)
	return nil
}

func (r *memoryAccountRepository) GetAccount(_ context.Context, id int64) (domain.Account, error) {
	s := r.store
	if s.tx != nil {
		if account, ok := s.tx.accounts[id]; ok {
			return account, nil
		}
	}

	s.state.mu.RLock()
	account, ok := s.state.accounts[id]
	s.state.mu.RUnlock()
	if !ok {
		return domain.Account{}, errors.ErrAccountNotFound
	}
	return account, nil
}

func (r *memoryAccountRepository) GetAccountForUpdate(ctx context.Context, id int64) (domain.Account, error) {
	return r.GetAccount(ctx, id)
}

func (r *memoryAccountRepository) UpdateAccountBalance(ctx context.Context, id int64, newBalance decimal.Decimal) error {
	account, err := r.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	account.Balance = newBalance
	account.UpdatedAt = time.Now().UTC()

	s := r.store
	if s.tx != nil {
		s.tx.accounts[id] = account
		return nil
	}

	s.state.mu.Lock()
	s.state.accounts[id] = account
	s.state.mu.Unlock()
	return nil
}

type memoryTransactionRepository struct {
	store *MemoryStore
}

func (r *memoryTransactionRepository) CreateTransaction(_ context.Context, tx *domain.Transaction) error {
	now := time.Now().UTC()
	tx.CreatedAt, tx.UpdatedAt = now, now

	s := r.store
	if s.tx != nil {
		s.tx.created[tx.ID] = *tx
		return nil
	}

	s.state.mu.Lock()
	s.state.transactions[tx.ID] = *tx
	s.state.mu.Unlock()
	return nil
}

func (r *memoryTransactionRepository) GetTransactionByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	transaction, ok := r.lookup(id)
	if !ok {
		return nil, nil
	}
	return &transaction, nil
}

// lookup reads id through the unit of work's staged writes.
func (r *memoryTransactionRepository) lookup(id uuid.UUID) (domain.Transaction, bool) {
	s := r.store

	transaction, ok := domain.Transaction{}, false
	if s.tx != nil {
		transaction, ok = s.tx.created[id]
	}
	if !ok {
		s.state.mu.RLock()
		transaction, ok = s.state.transactions[id]
		s.state.mu.RUnlock()
	}
	if !ok {
		return domain.Transaction{}, false
	}

	if s.tx != nil {
		if change, staged := s.tx.statuses[id]; staged {
			transaction.Status = change.to
			transaction.UpdatedAt = change.at
		}
	}
	return transaction, true
}

func (r *memoryTransactionRepository) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s := r.store

	s.state.mu.RLock()
	ids := make([]uuid.UUID, 0, len(s.state.transactions))
	for id := range s.state.transactions {
		ids = append(ids, id)
	}
	s.state.mu.RUnlock()
	if s.tx != nil {
		for id := range s.tx.created {
			ids = append(ids, id)
		}
	}

	var out []domain.Transaction
	for _, id := range ids {
		transaction, ok := r.lookup(id)
		if !ok {
			continue
		}
		if filter.OwnerAccountID != 0 && transaction.OwnerAccountID != filter.OwnerAccountID {
			continue
		}
		if filter.Status != "" && transaction.Status != filter.Status {
			continue
		}
		out = append(out, transaction)
	}

	slices.SortFunc(out, func(a, b domain.Transaction) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(b.ID[:], a.ID[:])
	})
	return out, nil
}

func (r *memoryTransactionRepository) UpdateTransactionStatus(_ context.Context, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	transaction, ok := r.lookup(id)
	if !ok || transaction.Status != from {
		return false, nil
	}

	now := time.Now().UTC()
	s := r.store
	if s.tx != nil {
		s.tx.statuses[id] = statusChange{from: from, to: to, at: now}
		return true, nil
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	current := s.state.transactions[id]
	if current.Status != from {
		return false, nil
	}
	current.Status = to
	current.UpdatedAt = now
	s.state.transactions[id] = current
	return true, nil
}
