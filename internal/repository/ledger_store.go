// internal/repository/ledger_store.go
package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"instantransfer/internal/domain"
)

// LedgerStore is the persistence boundary of the ledger engine.
type LedgerStore interface {
	// LoadWallet returns the user's wallet, or util.ErrWalletNotFound.
	// The returned Wallet.Version is the token to pass back on commit.
	LoadWallet(ctx context.Context, userID int64) (*domain.Wallet, error)

	// CommitWalletAndTransaction writes the wallet state and appends tx in one
	// atomic step. expectedVersion 0 inserts a new wallet; any other value only
	// succeeds if the stored version still matches. On success wallet.Version
	// holds the new token. Fails with util.ErrConflict or
	// util.ErrDuplicateIdempotencyKey, and in both cases nothing is written.
	CommitWalletAndTransaction(ctx context.Context, wallet *domain.Wallet, expectedVersion int64, tx *domain.Transaction) error

	// AppendTransaction records tx for a user who has no wallet, leaving the
	// user walletless. Fails with util.ErrConflict once a wallet exists, or with
	// util.ErrDuplicateIdempotencyKey.
	AppendTransaction(ctx context.Context, tx *domain.Transaction) error

	// FindTransactionByIdempotencyKey returns util.ErrNotFound when absent.
	FindTransactionByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Transaction, error)
}

// LedgerReader serves read-only wallet views.
type LedgerReader interface {
	GetWalletByUserID(ctx context.Context, userID int64) (*domain.Wallet, error)
	// ListTransactionsByUserID returns a page ordered newest first plus the total count.
	ListTransactionsByUserID(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error)
}

// CurrencyCatalog holds currency metadata and the last refreshed rates.
type CurrencyCatalog interface {
	// GetCurrency returns util.ErrNotFound for unknown codes.
	GetCurrency(ctx context.Context, code string) (*domain.Currency, error)
	ListCurrencies(ctx context.Context) ([]domain.Currency, error)
	// UpsertRates stores rates relative to base, creating unknown codes.
	UpsertRates(ctx context.Context, base string, rates map[string]decimal.Decimal) (int, error)
}

// Store is implemented by every storage backend.
type Store interface {
	LedgerStore
	LedgerReader
	CurrencyCatalog
}
