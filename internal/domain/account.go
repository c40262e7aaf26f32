package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID        int64           `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsSuspended reports whether the balance is negative.
func (a Account) IsSuspended() bool {
	return a.Balance.IsNegative()
}

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id int64) (Account, error)
	// GetAccountForUpdate reads the account and holds its row until the
	// surrounding unit of work ends.
	GetAccountForUpdate(ctx context.Context, id int64) (Account, error)
	UpdateAccountBalance(ctx context.Context, id int64, newBalance decimal.Decimal) error
}
