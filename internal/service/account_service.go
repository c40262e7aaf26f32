package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/errors"
)

type AccountService struct {
	store  domain.Store
	logger *slog.Logger
}

func NewAccountService(store domain.Store, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:  store,
		logger: logger,
	}
}

func (s *AccountService) CreateAccount(ctx context.Context, accountID int64, initialBalance decimal.Decimal) (*domain.Account, error) {
	s.logger.Info("Creating account", "account_id", accountID, "initial_balance", initialBalance)

	if accountID <= 0 {
		return nil, errors.ErrInvalidAccountID
	}

	if initialBalance.IsNegative() || !initialBalance.Equal(initialBalance.Truncate(2)) {
		return nil, errors.NewAppError(errors.ValidationFailure, "initial balance must be a non-negative amount with at most two decimals")
	}

	if initialBalance.GreaterThan(domain.MaxAmount) {
		return nil, errors.NewAppError(errors.ValidationFailure, "initial balance exceeds maximum limit")
	}

	account := &domain.Account{
		ID:      accountID,
		Balance: initialBalance,
	}

	if err := s.store.Account().CreateAccount(ctx, account); err != nil {
		return nil, errors.AsAppError(err)
	}

	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	id, err := strconv.ParseInt(accountID, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.ErrInvalidAccountID
	}

	account, err := s.store.Account().GetAccount(ctx, id)
	if err != nil {
		return nil, errors.AsAppError(err)
	}
	return &account, nil
}
