package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/errors"
	"wallet-ledger/internal/lock"
)

// Policy holds the business rules that are configuration rather than
// accounting law.
type Policy struct {
	// SuspendNegativeBalance blocks deposits into and transfers out of an
	// account whose balance is negative.
	SuspendNegativeBalance bool
	// OperationTimeout bounds lock acquisition plus the unit of work.
	OperationTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		SuspendNegativeBalance: true,
		OperationTimeout:       10 * time.Second,
	}
}

type DepositResult struct {
	Transaction domain.Transaction
	Balance     decimal.Decimal
}

type TransferResult struct {
	Transaction   domain.Transaction
	Balance       decimal.Decimal
	TargetBalance decimal.Decimal
}

type ReversalResult struct {
	Transaction domain.Transaction
	// Balance is the owner's balance after the reversal.
	Balance decimal.Decimal
	// CounterpartyBalance is set for reversed transfers.
	CounterpartyBalance *decimal.Decimal
}

// WalletService applies deposits, transfers and reversals. Each operation
// holds the locks of every account it touches for the whole read, check,
// mutate and commit sequence.
type WalletService struct {
	store   domain.Store
	locker  lock.Locker
	policy  Policy
	metrics *metrics
	logger  *slog.Logger
	newID   func() (uuid.UUID, error)
}

type Option func(*walletOptions)

type walletOptions struct {
	meter metric.Meter
	newID func() (uuid.UUID, error)
}

// WithMeter records operation metrics on meter instead of the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(o *walletOptions) { o.meter = meter }
}

// WithIDGenerator overrides how transaction ids are created.
func WithIDGenerator(fn func() (uuid.UUID, error)) Option {
	return func(o *walletOptions) { o.newID = fn }
}

func NewWalletService(store domain.Store, locker lock.Locker, policy Policy, logger *slog.Logger, opts ...Option) *WalletService {
	o := walletOptions{
		meter: otel.Meter(meterName),
		newID: uuid.NewV7,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if policy.OperationTimeout <= 0 {
		policy.OperationTimeout = DefaultPolicy().OperationTimeout
	}

	return &WalletService{
		store:   store,
		locker:  locker,
		policy:  policy,
		metrics: newMetrics(o.meter, logger),
		logger:  logger,
		newID:   o.newID,
	}
}

// Deposit credits amount to accountID and records a completed deposit.
func (s *WalletService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*DepositResult, error) {
	start := time.Now()
	s.logger.Info("Processing deposit", "account_id", accountID, "amount", amount)

	result, err := s.deposit(ctx, accountID, amount)
	s.finish(ctx, opDeposit, start, err)
	if err != nil {
		return nil, errors.AsAppError(err)
	}

	s.logger.Info("Deposit completed", "transaction_id", result.Transaction.ID, "balance", result.Balance)
	return result, nil
}

func (s *WalletService) deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*DepositResult, error) {
	if accountID <= 0 {
		return nil, errors.ErrInvalidAccountID
	}
	if !domain.ValidAmount(amount) {
		return nil, errors.ErrInvalidAmount
	}

	ctx, cancel := context.WithTimeout(ctx, s.policy.OperationTimeout)
	defer cancel()

	release, err := s.locker.Acquire(ctx, accountID)
	if err != nil {
		return nil, errors.ErrPersistenceFailure.Wrap(err)
	}
	defer release()

	account, err := s.store.Account().GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if s.suspended(account) {
		return nil, errors.ErrAccountSuspended
	}

	record, err := s.newTransaction(accountID, nil, amount, domain.TransactionTypeDeposit)
	if err != nil {
		return nil, err
	}

	var balance decimal.Decimal
	err = s.store.WithTransaction(ctx, func(uow domain.Store) error {
		current, err := uow.Account().GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		updated := domain.Credit(current, amount)
		if !domain.WithinLimit(updated.Balance) {
			return errors.ErrBalanceLimit
		}
		if err := uow.Account().UpdateAccountBalance(ctx, accountID, updated.Balance); err != nil {
			return err
		}
		if err := uow.Transaction().CreateTransaction(ctx, record); err != nil {
			return err
		}

		balance = updated.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &DepositResult{Transaction: *record, Balance: balance}, nil
}

// Transfer moves amount from sourceID to targetID and records one completed
// transfer owned by the source.
func (s *WalletService) Transfer(ctx context.Context, sourceID, targetID int64, amount decimal.Decimal) (*TransferResult, error) {
	start := time.Now()
	s.logger.Info("Processing transfer",
		"source_account_id", sourceID,
		"target_account_id", targetID,
		"amount", amount)

	result, err := s.transfer(ctx, sourceID, targetID, amount)
	s.finish(ctx, opTransfer, start, err)
	if err != nil {
		return nil, errors.AsAppError(err)
	}

	s.logger.Info("Transfer completed", "transaction_id", result.Transaction.ID, "balance", result.Balance)
	return result, nil
}

func (s *WalletService) transfer(ctx context.Context, sourceID, targetID int64, amount decimal.Decimal) (*TransferResult, error) {
	if sourceID <= 0 || targetID <= 0 {
		return nil, errors.ErrInvalidAccountID
	}
	if sourceID == targetID {
		return nil, errors.ErrSameAccountTransfer
	}
	if !domain.ValidAmount(amount) {
		return nil, errors.ErrInvalidAmount
	}

	ctx, cancel := context.WithTimeout(ctx, s.policy.OperationTimeout)
	defer cancel()

	// Fail fast on an unknown target before contending for any lock.
	if _, err := s.store.Account().GetAccount(ctx, targetID); err != nil {
		if errors.AsAppError(err).Code == errors.AccountNotFound {
			return nil, errors.ErrTargetNotFound
		}
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, sourceID, targetID)
	if err != nil {
		return nil, errors.ErrPersistenceFailure.Wrap(err)
	}
	defer release()

	// Funds must be checked while the source lock is held.
	source, err := s.store.Account().GetAccount(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if err := s.checkDebit(source, amount); err != nil {
		return nil, err
	}

	record, err := s.newTransaction(sourceID, &targetID, amount, domain.TransactionTypeTransfer)
	if err != nil {
		return nil, err
	}

	var result TransferResult
	err = s.store.WithTransaction(ctx, func(uow domain.Store) error {
		accounts, err := lockRows(ctx, uow, sourceID, targetID)
		if err != nil {
			return err
		}
		if err := s.checkDebit(accounts[sourceID], amount); err != nil {
			return err
		}

		source := domain.Debit(accounts[sourceID], amount)
		target := domain.Credit(accounts[targetID], amount)
		if !domain.WithinLimit(target.Balance) {
			return errors.ErrBalanceLimit
		}

		if err := uow.Account().UpdateAccountBalance(ctx, source.ID, source.Balance); err != nil {
			return err
		}
		if err := uow.Account().UpdateAccountBalance(ctx, target.ID, target.Balance); err != nil {
			return err
		}
		if err := uow.Transaction().CreateTransaction(ctx, record); err != nil {
			return err
		}

		result.Balance = source.Balance
		result.TargetBalance = target.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Transaction = *record
	return &result, nil
}

// Reverse undoes a completed transaction owned by requestingAccountID. The
// original record is marked reversed; no new record is written.
func (s *WalletService) Reverse(ctx context.Context, transactionID uuid.UUID, requestingAccountID int64) (*ReversalResult, error) {
	start := time.Now()
	s.logger.Info("Processing reversal",
		"transaction_id", transactionID,
		"requesting_account_id", requestingAccountID)

	result, err := s.reverse(ctx, transactionID, requestingAccountID)
	s.finish(ctx, opReverse, start, err)
	if err != nil {
		return nil, errors.AsAppError(err)
	}

	s.logger.Info("Reversal completed", "transaction_id", transactionID, "balance", result.Balance)
	return result, nil
}

func (s *WalletService) reverse(ctx context.Context, transactionID uuid.UUID, requestingAccountID int64) (*ReversalResult, error) {
	if requestingAccountID <= 0 {
		return nil, errors.ErrInvalidAccountID
	}

	ctx, cancel := context.WithTimeout(ctx, s.policy.OperationTimeout)
	defer cancel()

	record, err := s.store.Transaction().GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Status != domain.StatusCompleted {
		return nil, errors.ErrInvalidReversal
	}
	if record.OwnerAccountID != requestingAccountID {
		return nil, errors.ErrForbidden
	}

	release, err := s.locker.Acquire(ctx, record.Accounts()...)
	if err != nil {
		return nil, errors.ErrPersistenceFailure.Wrap(err)
	}
	defer release()

	var result ReversalResult
	err = s.store.WithTransaction(ctx, func(uow domain.Store) error {
		// Another reversal may have committed while we waited for the lock.
		current, err := uow.Transaction().GetTransactionByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if current == nil || current.Status != domain.StatusCompleted {
			return errors.ErrInvalidReversal
		}

		accounts, err := lockRows(ctx, uow, current.Accounts()...)
		if err != nil {
			return err
		}

		// No funds check: reversal may drive a balance negative.
		var changed []domain.Account
		owner := accounts[current.OwnerAccountID]
		switch current.Type {
		case domain.TransactionTypeDeposit:
			owner = domain.Debit(owner, current.Amount)
			changed = append(changed, owner)
		case domain.TransactionTypeTransfer:
			counterparty := domain.Debit(accounts[*current.CounterpartyAccountID], current.Amount)
			owner = domain.Credit(owner, current.Amount)
			changed = append(changed, owner, counterparty)
			result.CounterpartyBalance = &counterparty.Balance
		default:
			return errors.ErrInvalidReversal.WithDetails("unknown transaction type " + string(current.Type))
		}

		for _, account := range changed {
			if !domain.WithinLimit(account.Balance) {
				return errors.ErrBalanceLimit
			}
			if err := uow.Account().UpdateAccountBalance(ctx, account.ID, account.Balance); err != nil {
				return err
			}
		}

		ok, err := uow.Transaction().UpdateTransactionStatus(ctx, transactionID, domain.StatusCompleted, domain.StatusReversed)
		if err != nil {
			return err
		}
		if !ok {
			return errors.ErrInvalidReversal
		}

		current.Status = domain.StatusReversed
		current.UpdatedAt = time.Now().UTC()
		result.Transaction = *current
		result.Balance = owner.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (s *WalletService) suspended(account domain.Account) bool {
	return s.policy.SuspendNegativeBalance && account.IsSuspended()
}

func (s *WalletService) checkDebit(account domain.Account, amount decimal.Decimal) error {
	if s.suspended(account) {
		return errors.ErrAccountSuspended
	}
	if account.Balance.LessThan(amount) {
		return errors.ErrInsufficientFunds
	}
	return nil
}

func (s *WalletService) newTransaction(owner int64, counterparty *int64, amount decimal.Decimal, txType domain.TransactionType) (*domain.Transaction, error) {
	id, err := s.newID()
	if err != nil {
		return nil, errors.ErrPersistenceFailure.Wrap(err)
	}
	return &domain.Transaction{
		ID:                    id,
		OwnerAccountID:        owner,
		CounterpartyAccountID: counterparty,
		Amount:                amount,
		Type:                  txType,
		Status:                domain.StatusCompleted,
	}, nil
}

func (s *WalletService) finish(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.record(ctx, op, start, err)
	if err == nil {
		return
	}

	appErr := errors.AsAppError(err)
	if appErr.Code == errors.PersistenceFailure {
		s.logger.Error("Wallet operation failed", "operation", op, "error", appErr, "details", appErr.Details)
		return
	}
	s.logger.Warn("Wallet operation rejected", "operation", op, "code", appErr.Code)
}

// lockRows reads ids inside uow in canonical order so concurrent units of
// work take row locks in the same order as the account locks.
func lockRows(ctx context.Context, uow domain.Store, ids ...int64) (map[int64]domain.Account, error) {
	accounts := make(map[int64]domain.Account, len(ids))
	for _, id := range lock.Canonical(ids) {
		account, err := uow.Account().GetAccountForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		accounts[id] = account
	}
	return accounts, nil
}
