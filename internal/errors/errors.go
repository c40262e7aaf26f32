package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ValidationFailure  ErrorCode = "validation_failure"
	AccountSuspended   ErrorCode = "account_suspended"
	InsufficientFunds  ErrorCode = "insufficient_funds"
	TargetNotFound     ErrorCode = "target_not_found"
	Forbidden          ErrorCode = "forbidden"
	InvalidReversal    ErrorCode = "invalid_reversal"
	NoTransactions     ErrorCode = "no_transactions"
	PersistenceFailure ErrorCode = "persistence_failure"
	AccountNotFound    ErrorCode = "account_not_found"
	DuplicateAccount   ErrorCode = "duplicate_account"
	Unauthorized       ErrorCode = "unauthorized"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	cause   error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches any AppError carrying the same code, so callers can write
// errors.Is(err, errors.ErrInsufficientFunds) against a decorated copy.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy so the predefined errors below are never mutated.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap returns a copy of e that unwraps to cause.
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.cause = cause
	if cause != nil && cp.Details == "" {
		cp.Details = cause.Error()
	}
	return &cp
}

// Retryable reports whether the caller may retry the same request.
func (e *AppError) Retryable() bool {
	return e.Code == PersistenceFailure
}

// HTTPStatus is the default status for the code. Some routes override the
// status used for persistence failures.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ValidationFailure:
		return http.StatusUnprocessableEntity
	case AccountSuspended, InsufficientFunds, Forbidden:
		return http.StatusForbidden
	case TargetNotFound, AccountNotFound, NoTransactions:
		return http.StatusNotFound
	case InvalidReversal:
		return http.StatusBadRequest
	case DuplicateAccount:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// AsAppError extracts an AppError from err. Anything else is an
// infrastructure failure and is reported as persistence_failure.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrPersistenceFailure.Wrap(err)
}

// Predefined errors for common cases
var (
	ErrInvalidAmount       = NewAppError(ValidationFailure, "amount must be positive, at most 999999999999999999.99 and have no more than two decimal places")
	ErrBalanceLimit        = NewAppError(ValidationFailure, "resulting balance exceeds the supported limit")
	ErrInvalidAccountID    = NewAppError(ValidationFailure, "account id must be a positive integer")
	ErrSameAccountTransfer = NewAppError(ValidationFailure, "cannot transfer to the same account")
	ErrAccountSuspended    = NewAppError(AccountSuspended, "transaction not authorized, account balance is negative")
	ErrInsufficientFunds   = NewAppError(InsufficientFunds, "insufficient funds")
	ErrTargetNotFound      = NewAppError(TargetNotFound, "target account not found")
	ErrForbidden           = NewAppError(Forbidden, "not allowed to reverse this transaction")
	ErrInvalidReversal     = NewAppError(InvalidReversal, "transaction already reversed or invalid identifier")
	ErrNoTransactions      = NewAppError(NoTransactions, "no transactions recorded for this account")
	ErrPersistenceFailure  = NewAppError(PersistenceFailure, "failed to persist changes")
	ErrAccountNotFound     = NewAppError(AccountNotFound, "account not found")
	ErrDuplicateAccount    = NewAppError(DuplicateAccount, "account already exists")
	ErrUnauthorized        = NewAppError(Unauthorized, "missing or invalid credentials")

	ErrCannotBeginTransaction = NewAppError(PersistenceFailure, "cannot begin a transaction inside a transaction")
)
