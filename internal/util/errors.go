// internal/util/errors.go
package util

import "errors"

// Ledger errors surfaced to callers.
var (
	ErrInvalidAmount            = errors.New("amount must be positive and within the allowed precision")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrConcurrentUpdateConflict = errors.New("wallet was updated concurrently, please retry")
	ErrRateUnavailable          = errors.New("exchange rate unavailable")
	ErrInvalidCurrency          = errors.New("invalid currency code")
	ErrCurrencyMismatch         = errors.New("wallet currency mismatch")
	ErrMissingIdempotencyKey    = errors.New("idempotency key is required")
)

// Common application-specific errors.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input provided")
	ErrWalletNotFound = errors.New("wallet not found")

	// Store-level outcomes. The ledger engine retries on both.
	ErrConflict                = errors.New("optimistic lock conflict")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
