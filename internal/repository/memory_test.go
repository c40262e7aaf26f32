package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore(newTestLogger()))
}

func TestMemoryStore_ExpiredContextDoesNotCommit(t *testing.T) {
	store := NewMemoryStore(newTestLogger())
	id := seedAccount(t, store, "1.00")

	ctx, cancel := context.WithCancel(context.Background())
	err := store.WithTransaction(ctx, func(uow domain.Store) error {
		cancel()
		return uow.Account().UpdateAccountBalance(ctx, id, decimal.RequireFromString("2.00"))
	})
	assert.ErrorIs(t, err, errors.ErrPersistenceFailure)

	account, err := store.Account().GetAccount(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("1")))
}

func TestMemoryStore_ConflictingStatusChangeFailsCommit(t *testing.T) {
	store := NewMemoryStore(newTestLogger())
	ctx := context.Background()
	id := seedAccount(t, store, "0")
	record := newTransaction(id, nil, "1.00")
	require.NoError(t, store.Transaction().CreateTransaction(ctx, record))

	err := store.WithTransaction(ctx, func(uow domain.Store) error {
		ok, err := uow.Transaction().UpdateTransactionStatus(ctx, record.ID, domain.StatusCompleted, domain.StatusReversed)
		require.NoError(t, err)
		require.True(t, ok)

		// Another writer gets there first.
		ok, err = store.Transaction().UpdateTransactionStatus(ctx, record.ID, domain.StatusCompleted, domain.StatusReversed)
		require.NoError(t, err)
		require.True(t, ok)
		return nil
	})
	assert.ErrorIs(t, err, errors.ErrPersistenceFailure)
}
