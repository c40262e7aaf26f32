package repository

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/errors"
)

var nextAccountID atomic.Int64

func newAccountID() int64 {
	return 1000 + nextAccountID.Add(1)
}

func seedAccount(t *testing.T, store domain.Store, balance string) int64 {
	t.Helper()
	account := &domain.Account{ID: newAccountID(), Balance: decimal.RequireFromString(balance)}
	require.NoError(t, store.Account().CreateAccount(context.Background(), account))
	return account.ID
}

func newTransaction(owner int64, counterparty *int64, amount string) *domain.Transaction {
	txType := domain.TransactionTypeDeposit
	if counterparty != nil {
		txType = domain.TransactionTypeTransfer
	}
	return &domain.Transaction{
		ID:                    uuid.Must(uuid.NewV7()),
		OwnerAccountID:        owner,
		CounterpartyAccountID: counterparty,
		Amount:                decimal.RequireFromString(amount),
		Type:                  txType,
		Status:                domain.StatusCompleted,
	}
}

// runStoreContract exercises behavior every domain.Store must share.
func runStoreContract(t *testing.T, store domain.Store) {
	ctx := context.Background()

	t.Run("account round trip", func(t *testing.T) {
		id := seedAccount(t, store, "10.50")

		account, err := store.Account().GetAccount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, account.ID)
		assert.True(t, account.Balance.Equal(decimal.RequireFromString("10.50")))

		require.NoError(t, store.Account().UpdateAccountBalance(ctx, id, decimal.RequireFromString("-3.25")))
		account, err = store.Account().GetAccountForUpdate(ctx, id)
		require.NoError(t, err)
		assert.True(t, account.Balance.Equal(decimal.RequireFromString("-3.25")))
	})

	t.Run("missing and duplicate accounts", func(t *testing.T) {
		_, err := store.Account().GetAccount(ctx, 999999999)
		assert.ErrorIs(t, err, errors.ErrAccountNotFound)

		err = store.Account().UpdateAccountBalance(ctx, 999999999, decimal.Zero)
		assert.ErrorIs(t, err, errors.ErrAccountNotFound)

		id := seedAccount(t, store, "0")
		err = store.Account().CreateAccount(ctx, &domain.Account{ID: id})
		assert.ErrorIs(t, err, errors.ErrDuplicateAccount)
	})

	t.Run("unit of work commits together", func(t *testing.T) {
		id := seedAccount(t, store, "0")
		record := newTransaction(id, nil, "25.00")

		err := store.WithTransaction(ctx, func(uow domain.Store) error {
			if err := uow.Account().UpdateAccountBalance(ctx, id, decimal.RequireFromString("25.00")); err != nil {
				return err
			}
			return uow.Transaction().CreateTransaction(ctx, record)
		})
		require.NoError(t, err)

		account, err := store.Account().GetAccount(ctx, id)
		require.NoError(t, err)
		assert.True(t, account.Balance.Equal(decimal.RequireFromString("25")))

		stored, err := store.Transaction().GetTransactionByID(ctx, record.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, domain.StatusCompleted, stored.Status)
		assert.Nil(t, stored.CounterpartyAccountID)
	})

	t.Run("unit of work rolls back together", func(t *testing.T) {
		id := seedAccount(t, store, "5.00")
		record := newTransaction(id, nil, "1.00")
		boom := stderrors.New("boom")

		err := store.WithTransaction(ctx, func(uow domain.Store) error {
			require.NoError(t, uow.Account().UpdateAccountBalance(ctx, id, decimal.RequireFromString("6.00")))
			require.NoError(t, uow.Transaction().CreateTransaction(ctx, record))

			// Writes are visible inside the unit of work.
			account, err := uow.Account().GetAccount(ctx, id)
			require.NoError(t, err)
			assert.True(t, account.Balance.Equal(decimal.RequireFromString("6")))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		account, err := store.Account().GetAccount(ctx, id)
		require.NoError(t, err)
		assert.True(t, account.Balance.Equal(decimal.RequireFromString("5")))

		stored, err := store.Transaction().GetTransactionByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("nested unit of work is rejected", func(t *testing.T) {
		err := store.WithTransaction(ctx, func(uow domain.Store) error {
			return uow.WithTransaction(ctx, func(domain.Store) error { return nil })
		})
		assert.ErrorIs(t, err, errors.ErrCannotBeginTransaction)
	})

	t.Run("status compare and set", func(t *testing.T) {
		owner := seedAccount(t, store, "0")
		target := seedAccount(t, store, "0")
		record := newTransaction(owner, &target, "3.00")
		require.NoError(t, store.Transaction().CreateTransaction(ctx, record))

		ok, err := store.Transaction().UpdateTransactionStatus(ctx, record.ID, domain.StatusCompleted, domain.StatusReversed)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Transaction().UpdateTransactionStatus(ctx, record.ID, domain.StatusCompleted, domain.StatusReversed)
		require.NoError(t, err)
		assert.False(t, ok)

		stored, err := store.Transaction().GetTransactionByID(ctx, record.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, domain.StatusReversed, stored.Status)
		require.NotNil(t, stored.CounterpartyAccountID)
		assert.Equal(t, target, *stored.CounterpartyAccountID)
	})

	t.Run("list newest first with filters", func(t *testing.T) {
		owner := seedAccount(t, store, "0")
		other := seedAccount(t, store, "0")

		var ids []uuid.UUID
		for _, amount := range []string{"1.00", "2.00", "3.00"} {
			record := newTransaction(owner, nil, amount)
			require.NoError(t, store.Transaction().CreateTransaction(ctx, record))
			ids = append(ids, record.ID)
			time.Sleep(2 * time.Millisecond)
		}
		require.NoError(t, store.Transaction().CreateTransaction(ctx, newTransaction(other, nil, "9.00")))
		_, err := store.Transaction().UpdateTransactionStatus(ctx, ids[0], domain.StatusCompleted, domain.StatusReversed)
		require.NoError(t, err)

		all, err := store.Transaction().ListTransactions(ctx, domain.TransactionFilter{OwnerAccountID: owner})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []uuid.UUID{ids[2], ids[1], ids[0]}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

		reversed, err := store.Transaction().ListTransactions(ctx, domain.TransactionFilter{
			OwnerAccountID: owner,
			Status:         domain.StatusReversed,
		})
		require.NoError(t, err)
		require.Len(t, reversed, 1)
		assert.Equal(t, ids[0], reversed[0].ID)

		none, err := store.Transaction().ListTransactions(ctx, domain.TransactionFilter{OwnerAccountID: newAccountID()})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		stored, err := store.Transaction().GetTransactionByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, stored)
	})
}
