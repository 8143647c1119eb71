// internal/api/handler/wallet.go
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"instantransfer/internal/api/types"
	"instantransfer/internal/auth"
	"instantransfer/internal/domain"
	"instantransfer/internal/service"
	"instantransfer/internal/util"
)

// DefaultTimeout bounds every request, including ledger retries.
const DefaultTimeout = 15 * time.Second

const (
	defaultPageLimit    = 10
	maxRequestBodyBytes = 1 << 20
	idempotencyHeader   = "Idempotency-Key"
)

// Ledger is the write side used by the handler. *service.LedgerEngine implements it.
type Ledger interface {
	Deposit(ctx context.Context, userID int64, amount decimal.Decimal, currency, idempotencyKey string) (*domain.Transaction, error)
	Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, currency, idempotencyKey string) (*domain.Transaction, error)
	ConvertAndQuote(ctx context.Context, from, to string, amount decimal.Decimal) (*domain.Quote, error)
}

// WalletHandler handles HTTP requests related to wallet operations.
type WalletHandler struct {
	ledger  Ledger
	wallets service.WalletService
	logger  *slog.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger Ledger, wallets service.WalletService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		ledger:  ledger,
		wallets: wallets,
		logger:  logger,
	}
}

// Helper function to send JSON responses.
func (h *WalletHandler) respondWithJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	render.Status(r, code)
	render.JSON(w, r, payload)
}

// errorStatuses is checked in order; the first matching sentinel decides the
// status code and the client-facing message.
var errorStatuses = []struct {
	target error
	status int
}{
	{auth.ErrUnauthenticated, http.StatusUnauthorized},
	{util.ErrInvalidAmount, http.StatusBadRequest},
	{util.ErrInvalidCurrency, http.StatusBadRequest},
	{util.ErrMissingIdempotencyKey, http.StatusBadRequest},
	{util.ErrCurrencyMismatch, http.StatusBadRequest},
	{util.ErrInsufficientBalance, http.StatusBadRequest},
	{util.ErrInvalidInput, http.StatusBadRequest},
	{util.ErrWalletNotFound, http.StatusNotFound},
	{util.ErrNotFound, http.StatusNotFound},
	{util.ErrConcurrentUpdateConflict, http.StatusConflict},
	{util.ErrRateUnavailable, http.StatusBadGateway},
}

func statusFor(err error) (int, string) {
	for _, e := range errorStatuses {
		if util.IsError(err, e.target) {
			return e.status, e.target.Error()
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

// Helper function to send error responses.
func (h *WalletHandler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Unhandled service error", "error", err, "path", r.URL.Path)
	}
	h.respondWithJSON(w, r, status, map[string]string{"error": message})
}

func (h *WalletHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		h.logger.Debug("rejecting malformed request body", "path", r.URL.Path, "error", err)
		return util.ErrInvalidInput
	}
	return nil
}

func currentUser(r *http.Request) (int64, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return 0, auth.ErrUnauthenticated
	}
	return userID, nil
}

// MoneyRequest is the body of deposit and withdraw requests. The amount may be
// sent as a JSON string or number.
type MoneyRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// TransactionResponse wraps a ledger transaction.
type TransactionResponse struct {
	Message     string              `json:"message,omitempty"`
	Error       string              `json:"error,omitempty"`
	Transaction *domain.Transaction `json:"transaction"`
}

type ledgerOp func(ctx context.Context, userID int64, amount decimal.Decimal, currency, idempotencyKey string) (*domain.Transaction, error)

func (h *WalletHandler) handleMoney(w http.ResponseWriter, r *http.Request, op ledgerOp, successMessage string) {
	userID, err := currentUser(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	var req MoneyRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(idempotencyHeader)
	}

	transaction, err := op(r.Context(), userID, req.Amount, req.Currency, req.IdempotencyKey)
	if err != nil {
		// A declined withdrawal is persisted; return the record with the error.
		if transaction != nil && errors.Is(err, util.ErrInsufficientBalance) {
			h.respondWithJSON(w, r, http.StatusBadRequest, TransactionResponse{
				Error:       util.ErrInsufficientBalance.Error(),
				Transaction: transaction,
			})
			return
		}
		h.respondWithError(w, r, err)
		return
	}

	h.respondWithJSON(w, r, http.StatusCreated, TransactionResponse{
		Message:     successMessage,
		Transaction: transaction,
	})
}

// Deposit handles the deposit money request.
// POST /deposit
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.handleMoney(w, r, h.ledger.Deposit, "Deposit successful")
}

// Withdraw handles the withdraw money request.
// POST /withdraw
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.handleMoney(w, r, h.ledger.Withdraw, "Withdrawal successful")
}

// ConvertRequest accepts both the long and the short currency field names.
type ConvertRequest struct {
	FromCurrency string          `json:"from_currency"`
	From         string          `json:"from"`
	ToCurrency   string          `json:"to_currency"`
	To           string          `json:"to"`
	Amount       decimal.Decimal `json:"amount"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ConvertCurrency handles the currency quote request.
// POST /convert-currency
func (h *WalletHandler) ConvertCurrency(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	quote, err := h.ledger.ConvertAndQuote(r.Context(),
		firstNonEmpty(req.FromCurrency, req.From),
		firstNonEmpty(req.ToCurrency, req.To),
		req.Amount)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondWithJSON(w, r, http.StatusOK, quote)
}

// GetWallet handles the get wallet balance request.
// GET /wallet
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	wallet, err := h.wallets.GetBalance(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"wallet_id": wallet.ID,
		"user_id":   wallet.UserID,
		"balance":   wallet.Balance,
		"currency":  wallet.Currency,
	})
}

// GetTransactionHistory handles the get transaction history request.
// GET /transactions
func (h *WalletHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	// Parse query parameters for pagination
	limit := defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			h.respondWithError(w, r, util.ErrInvalidInput)
			return
		}
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil {
			h.respondWithError(w, r, util.ErrInvalidInput)
			return
		}
	}

	transactions, totalCount, err := h.wallets.GetTransactionHistory(r.Context(), userID, limit, offset)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, r, http.StatusOK, types.NewPaginatedResponse(transactions, limit, offset, totalCount))
}

// ListCurrencies handles the currency catalog request.
// GET /currencies
func (h *WalletHandler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.wallets.ListCurrencies(r.Context())
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	if currencies == nil {
		currencies = []domain.Currency{}
	}

	h.respondWithJSON(w, r, http.StatusOK, map[string]interface{}{"data": currencies})
}
