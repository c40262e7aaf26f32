package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/errors"
)

type Statement struct {
	AccountID    int64
	Balance      decimal.Decimal
	Transactions []domain.Transaction
}

// StatementService reads an account's history. It takes no locks; a statement
// may be stale by the time it is returned.
type StatementService struct {
	store   domain.Store
	metrics *metrics
	logger  *slog.Logger
}

func NewStatementService(store domain.Store, logger *slog.Logger, opts ...Option) *StatementService {
	o := walletOptions{meter: otel.Meter(meterName)}
	for _, opt := range opts {
		opt(&o)
	}

	return &StatementService{
		store:   store,
		metrics: newMetrics(o.meter, logger),
		logger:  logger,
	}
}

// Statement returns the transactions owned by accountID, newest first, with
// the current balance. An empty status lists every status.
func (s *StatementService) Statement(ctx context.Context, accountID int64, status domain.TransactionStatus) (*Statement, error) {
	start := time.Now()
	s.logger.Info("Getting statement", "account_id", accountID, "status", status)

	statement, err := s.statement(ctx, accountID, status)
	s.metrics.record(ctx, opStatement, start, err)
	if err != nil {
		return nil, errors.AsAppError(err)
	}
	return statement, nil
}

func (s *StatementService) statement(ctx context.Context, accountID int64, status domain.TransactionStatus) (*Statement, error) {
	if accountID <= 0 {
		return nil, errors.ErrInvalidAccountID
	}
	if status != "" && !status.Valid() {
		return nil, errors.NewAppErrorf(errors.ValidationFailure, "unknown status %q", status)
	}

	transactions, err := s.store.Transaction().ListTransactions(ctx, domain.TransactionFilter{
		OwnerAccountID: accountID,
		Status:         status,
	})
	if err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return nil, errors.ErrNoTransactions
	}

	account, err := s.store.Account().GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &Statement{
		AccountID:    accountID,
		Balance:      account.Balance,
		Transactions: transactions,
	}, nil
}
