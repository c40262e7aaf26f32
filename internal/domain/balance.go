package domain

import "github.com/shopspring/decimal"

// MaxAmount is the largest magnitude an amount or balance may reach. Balances
// are persisted as NUMERIC(20,2).
var MaxAmount = decimal.RequireFromString("999999999999999999.99")

// Credit returns a copy of account with amount added. amount must be positive.
func Credit(account Account, amount decimal.Decimal) Account {
	account.Balance = account.Balance.Add(amount)
	return account
}

// Debit returns a copy of account with amount subtracted. amount must be
// positive; whether the balance covers it is the caller's decision, taken
// under the account lock.
func Debit(account Account, amount decimal.Decimal) Account {
	account.Balance = account.Balance.Sub(amount)
	return account
}

// ValidAmount reports whether amount can be moved: strictly positive, at most
// MaxAmount and with at most two decimal places.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && !amount.GreaterThan(MaxAmount) && amount.Equal(amount.Truncate(2))
}

// WithinLimit reports whether balance can be stored.
func WithinLimit(balance decimal.Decimal) bool {
	return !balance.Abs().GreaterThan(MaxAmount)
}
