package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/errors"
	"wallet-ledger/internal/service"
)

type WalletHandler struct {
	walletService    *service.WalletService
	statementService *service.StatementService
}

func NewWalletHandler(walletService *service.WalletService, statementService *service.StatementService) *WalletHandler {
	return &WalletHandler{
		walletService:    walletService,
		statementService: statementService,
	}
}

type DepositRequest struct {
	Amount json.Number `json:"amount"`
}

type TransferRequest struct {
	TargetAccountID json.Number `json:"target_user_id"`
	Amount          json.Number `json:"amount"`
}

// TransactionView is the wire form of a transaction. Amounts, like every
// balance in a response, carry exactly two decimals.
type TransactionView struct {
	ID                    uuid.UUID                `json:"id"`
	OwnerAccountID        int64                    `json:"user_id"`
	CounterpartyAccountID *int64                   `json:"target_user_id,omitempty"`
	Amount                string                   `json:"amount"`
	Type                  domain.TransactionType   `json:"type"`
	Status                domain.TransactionStatus `json:"status"`
	CreatedAt             time.Time                `json:"created_at"`
	UpdatedAt             time.Time                `json:"updated_at"`
}

func newTransactionView(t domain.Transaction) TransactionView {
	return TransactionView{
		ID:                    t.ID,
		OwnerAccountID:        t.OwnerAccountID,
		CounterpartyAccountID: t.CounterpartyAccountID,
		Amount:                formatAmount(t.Amount),
		Type:                  t.Type,
		Status:                t.Status,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}

type TransactionResponse struct {
	Message     string          `json:"message"`
	Transaction TransactionView `json:"transaction"`
	Balance     string          `json:"saldo"`
}

type ReversalResponse struct {
	Message string `json:"message"`
	Balance string `json:"saldo"`
}

type StatementResponse struct {
	Message      string            `json:"message"`
	Transactions []TransactionView `json:"transactions"`
	Balance      string            `json:"saldo"`
}

func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	callerID, ok := CallerID(r.Context())
	if !ok {
		writeError(w, errors.ErrUnauthorized)
		return
	}

	var req DepositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.walletService.Deposit(r.Context(), callerID, amount)
	if err != nil {
		writeErrorStatus(w, err, http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, TransactionResponse{
		Message:     "Deposit completed",
		Transaction: newTransactionView(result.Transaction),
		Balance:     formatAmount(result.Balance),
	})
}

func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	callerID, ok := CallerID(r.Context())
	if !ok {
		writeError(w, errors.ErrUnauthorized)
		return
	}

	var req TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	targetID, err := strconv.ParseInt(req.TargetAccountID.String(), 10, 64)
	if err != nil {
		writeError(w, errors.ErrInvalidAccountID.WithDetails("invalid target_user_id"))
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.walletService.Transfer(r.Context(), callerID, targetID, amount)
	if err != nil {
		writeErrorStatus(w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, TransactionResponse{
		Message:     "Transfer completed",
		Transaction: newTransactionView(result.Transaction),
		Balance:     formatAmount(result.Balance),
	})
}

func (h *WalletHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	callerID, ok := CallerID(r.Context())
	if !ok {
		writeError(w, errors.ErrUnauthorized)
		return
	}

	transactionID, err := uuid.Parse(mux.Vars(r)["transaction_id"])
	if err != nil {
		writeError(w, errors.ErrInvalidReversal.WithDetails(err.Error()))
		return
	}

	result, err := h.walletService.Reverse(r.Context(), transactionID, callerID)
	if err != nil {
		writeErrorStatus(w, err, http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, ReversalResponse{
		Message: "Transaction reversed",
		Balance: formatAmount(result.Balance),
	})
}

func (h *WalletHandler) Statement(w http.ResponseWriter, r *http.Request) {
	callerID, ok := CallerID(r.Context())
	if !ok {
		writeError(w, errors.ErrUnauthorized)
		return
	}

	status := domain.TransactionStatus(r.URL.Query().Get("status"))

	statement, err := h.statementService.Statement(r.Context(), callerID, status)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]TransactionView, 0, len(statement.Transactions))
	for _, t := range statement.Transactions {
		views = append(views, newTransactionView(t))
	}

	writeJSON(w, http.StatusOK, StatementResponse{
		Message:      "Statement retrieved",
		Transactions: views,
		Balance:      formatAmount(statement.Balance),
	})
}

func parseAmount(raw json.Number) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, errors.ErrInvalidAmount.WithDetails("invalid amount format")
	}
	return amount, nil
}

func formatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
