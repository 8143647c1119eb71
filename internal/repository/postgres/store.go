// internal/repository/postgres/store.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"instantransfer/internal/domain"
	"instantransfer/internal/repository"
	"instantransfer/internal/util"
	"instantransfer/pkg/db"
)

// Store implements the ledger, reader and currency interfaces on PostgreSQL.
// Writes go through one database transaction per commit.
type Store struct {
	dbBeginner   db.DBTxBeginner
	dbExecutor   repository.DBExecutor
	wallets      *WalletRepository
	transactions *TransactionRepository
	currencies   *CurrencyRepository
	beginTx      db.BeginTxFunc
	commitTx     db.CommitTxFunc
	rollbackTx   db.RollbackTxFunc
}

var (
	_ repository.LedgerStore     = (*Store)(nil)
	_ repository.LedgerReader    = (*Store)(nil)
	_ repository.CurrencyCatalog = (*Store)(nil)
)

// NewStore wires the table repositories. *sqlx.DB satisfies both dbBeginner and dbExecutor.
func NewStore(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) *Store {
	return &Store{
		dbBeginner:   dbBeginner,
		dbExecutor:   dbExecutor,
		wallets:      NewWalletRepository(),
		transactions: NewTransactionRepository(),
		currencies:   NewCurrencyRepository(),
		beginTx:      beginTx,
		commitTx:     commitTx,
		rollbackTx:   rollbackTx,
	}
}

func (s *Store) LoadWallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return s.wallets.GetWalletByUserID(ctx, s.dbExecutor, userID)
}

func (s *Store) CommitWalletAndTransaction(ctx context.Context, wallet *domain.Wallet, expectedVersion int64, tx *domain.Transaction) error {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("commit: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("commit: transaction controller does not implement DBExecutor")
	}

	staged := *wallet
	if expectedVersion == 0 {
		inserted, err := s.wallets.InsertWallet(ctx, txExecutor, &staged)
		if err != nil {
			return fmt.Errorf("commit: %w", translateError(err))
		}
		if !inserted {
			return util.ErrConflict
		}
	} else if err := s.wallets.UpdateWalletBalance(ctx, txExecutor, &staged, expectedVersion); err != nil {
		return fmt.Errorf("commit: %w", translateError(err))
	}

	if err := s.transactions.CreateTransaction(ctx, txExecutor, tx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("commit: failed to commit transaction: %w", translateError(err))
	}

	*wallet = staged
	return nil
}

// AppendTransaction inserts tx only while the user still has no wallet row.
func (s *Store) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("append: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("append: transaction controller does not implement DBExecutor")
	}

	_, err = s.wallets.GetWalletByUserID(ctx, txExecutor, tx.UserID)
	switch {
	case err == nil:
		return util.ErrConflict
	case !errors.Is(err, util.ErrWalletNotFound):
		return fmt.Errorf("append: %w", err)
	}

	if err := s.transactions.CreateTransaction(ctx, txExecutor, tx); err != nil {
		return fmt.Errorf("append: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("append: failed to commit transaction: %w", translateError(err))
	}
	return nil
}

func (s *Store) FindTransactionByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Transaction, error) {
	return s.transactions.GetTransactionByIdempotencyKey(ctx, s.dbExecutor, userID, key)
}

func (s *Store) GetWalletByUserID(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return s.wallets.GetWalletByUserID(ctx, s.dbExecutor, userID)
}

func (s *Store) ListTransactionsByUserID(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	return s.transactions.GetTransactionsByUserID(ctx, s.dbExecutor, userID, limit, offset)
}

func (s *Store) GetCurrency(ctx context.Context, code string) (*domain.Currency, error) {
	return s.currencies.GetCurrency(ctx, s.dbExecutor, code)
}

func (s *Store) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	return s.currencies.ListCurrencies(ctx, s.dbExecutor)
}

// UpsertRates writes every rate, plus the base at 1, in a single transaction.
func (s *Store) UpsertRates(ctx context.Context, base string, rates map[string]decimal.Decimal) (int, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return 0, fmt.Errorf("upsert rates: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return 0, fmt.Errorf("upsert rates: transaction controller does not implement DBExecutor")
	}

	now := time.Now().UTC()
	base = strings.ToUpper(base)
	if err := s.currencies.UpsertRate(ctx, txExecutor, base, decimal.NewFromInt(1), now); err != nil {
		return 0, fmt.Errorf("upsert rates: %w", err)
	}
	normalized := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		normalized[strings.ToUpper(code)] = rate
	}
	delete(normalized, base)

	count := 1
	codes := make([]string, 0, len(normalized))
	for code := range normalized {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		if err := s.currencies.UpsertRate(ctx, txExecutor, code, normalized[code], now); err != nil {
			return 0, fmt.Errorf("upsert rates: %w", err)
		}
		count++
	}

	if err := s.commitTx(txController); err != nil {
		return 0, fmt.Errorf("upsert rates: failed to commit transaction: %w", err)
	}
	return count, nil
}
