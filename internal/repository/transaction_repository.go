package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/errors"
)

const transactionColumns = `id, owner_account_id, counterparty_account_id, amount, type, status, created_at, updated_at`

type transactionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransactionRepository(db SQLExecutor, logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	now := time.Now().UTC()

	var counterparty sql.NullInt64
	if tx.CounterpartyAccountID != nil {
		counterparty = sql.NullInt64{Int64: *tx.CounterpartyAccountID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		query,
		tx.ID,
		tx.OwnerAccountID,
		counterparty,
		tx.Amount.String(),
		string(tx.Type),
		string(tx.Status),
		now,
		now,
	)

	if err != nil {
		r.logger.Error("Failed to create transaction",
			"owner_account_id", tx.OwnerAccountID,
			"counterparty_account_id", tx.CounterpartyAccountID,
			"amount", tx.Amount,
			"error", err)
		return errors.ErrPersistenceFailure.Wrap(err)
	}

	tx.CreatedAt = now
	tx.UpdatedAt = now
	r.logger.Info("Transaction created successfully", "transaction_id", tx.ID, "type", tx.Type)
	return nil
}

func (r *transactionRepository) GetTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	transaction, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction", "transaction_id", id, "error", err)
		return nil, errors.ErrPersistenceFailure.Wrap(err)
	}
	return transaction, nil
}

func (r *transactionRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.OwnerAccountID != 0 {
		args = append(args, filter.OwnerAccountID)
		conditions = append(conditions, fmt.Sprintf("owner_account_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list transactions", "owner_account_id", filter.OwnerAccountID, "error", err)
		return nil, errors.ErrPersistenceFailure.Wrap(err)
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, errors.ErrPersistenceFailure.Wrap(err)
		}
		transactions = append(transactions, *transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ErrPersistenceFailure.Wrap(err)
	}

	return transactions, nil
}

func (r *transactionRepository) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	query := `UPDATE transactions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		r.logger.Error("Failed to update transaction status",
			"transaction_id", id, "status", to, "error", err)
		return false, errors.ErrPersistenceFailure.Wrap(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.ErrPersistenceFailure.Wrap(err)
	}

	if rowsAffected == 0 {
		return false, nil
	}

	r.logger.Info("Transaction status updated", "transaction_id", id, "status", to)
	return true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		transaction  domain.Transaction
		counterparty sql.NullInt64
		amountStr    string
		txType       string
		status       string
	)

	err := row.Scan(
		&transaction.ID,
		&transaction.OwnerAccountID,
		&counterparty,
		&amountStr,
		&txType,
		&status,
		&transaction.CreatedAt,
		&transaction.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amountStr, err)
	}
	transaction.Amount = amount
	transaction.Type = domain.TransactionType(txType)
	transaction.Status = domain.TransactionStatus(status)

	if counterparty.Valid {
		id := counterparty.Int64
		transaction.CounterpartyAccountID = &id
	}

	return &transaction, nil
}
