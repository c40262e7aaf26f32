package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeTransfer TransactionType = "transfer"
)

type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusReversed  TransactionStatus = "reversed"
)

func (s TransactionStatus) Valid() bool {
	return s == StatusCompleted || s == StatusReversed
}

type Transaction struct {
	ID                    uuid.UUID         `json:"id"`
	OwnerAccountID        int64             `json:"user_id"`
	CounterpartyAccountID *int64            `json:"target_user_id,omitempty"`
	Amount                decimal.Decimal   `json:"amount"`
	Type                  TransactionType   `json:"type"`
	Status                TransactionStatus `json:"status"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// Accounts returns the ids the transaction touches, owner first.
func (t Transaction) Accounts() []int64 {
	if t.CounterpartyAccountID == nil {
		return []int64{t.OwnerAccountID}
	}
	return []int64{t.OwnerAccountID, *t.CounterpartyAccountID}
}

// TransactionFilter selects records from the log. Zero fields match everything.
type TransactionFilter struct {
	OwnerAccountID int64
	Status         TransactionStatus
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	// GetTransactionByID returns nil, nil when the id is unknown.
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// ListTransactions returns matches newest first.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	// UpdateTransactionStatus moves id from `from` to `to` and reports
	// whether a row in state `from` was found.
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, from, to TransactionStatus) (bool, error)
}
