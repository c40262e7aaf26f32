package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCreditDebit(t *testing.T) {
	original := Account{ID: 1, Balance: decimal.RequireFromString("10.10")}

	credited := Credit(original, decimal.RequireFromString("0.20"))
	assert.True(t, credited.Balance.Equal(decimal.RequireFromString("10.30")))
	// The input snapshot is untouched.
	assert.True(t, original.Balance.Equal(decimal.RequireFromString("10.10")))

	debited := Debit(credited, decimal.RequireFromString("10.30"))
	assert.True(t, debited.Balance.IsZero())

	negative := Debit(debited, decimal.RequireFromString("5"))
	assert.True(t, negative.IsSuspended())
}

func TestCreditDebitNoDrift(t *testing.T) {
	account := Account{ID: 1}
	cent := decimal.RequireFromString("0.01")
	for i := 0; i < 1000; i++ {
		account = Credit(account, cent)
	}
	assert.Equal(t, "10", account.Balance.String())
	for i := 0; i < 1000; i++ {
		account = Debit(account, cent)
	}
	assert.True(t, account.Balance.IsZero())
}

func TestValidAmount(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"100.00", true},
		{"0.01", true},
		{"0", false},
		{"-1", false},
		{"0.001", false},
		{"12.5", true},
		{"999999999999999999.99", true},
		{"1000000000000000000", false},
		{"999999999999999999.999", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidAmount(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestWithinLimit(t *testing.T) {
	assert.True(t, WithinLimit(MaxAmount))
	assert.True(t, WithinLimit(MaxAmount.Neg()))
	assert.True(t, WithinLimit(decimal.Zero))

	cent := decimal.RequireFromString("0.01")
	assert.False(t, WithinLimit(MaxAmount.Add(cent)))
	assert.False(t, WithinLimit(MaxAmount.Neg().Sub(cent)))
}

func TestTransactionAccounts(t *testing.T) {
	deposit := Transaction{ID: uuid.New(), OwnerAccountID: 7, Type: TransactionTypeDeposit}
	assert.Equal(t, []int64{7}, deposit.Accounts())

	target := int64(3)
	transfer := Transaction{ID: uuid.New(), OwnerAccountID: 7, CounterpartyAccountID: &target, Type: TransactionTypeTransfer}
	assert.Equal(t, []int64{7, 3}, transfer.Accounts())

	assert.True(t, StatusCompleted.Valid())
	assert.False(t, TransactionStatus("pending").Valid())
}
