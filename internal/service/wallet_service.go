// internal/service/wallet_service.go
package service

import (
	"context"
	"fmt"

	"instantransfer/internal/domain"
	"instantransfer/internal/repository"
	"instantransfer/internal/util"
)

const maxHistoryPageSize = 100

// WalletService defines the read side of the wallet API.
type WalletService interface {
	GetBalance(ctx context.Context, userID int64) (*domain.Wallet, error)
	GetTransactionHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error)
	ListCurrencies(ctx context.Context) ([]domain.Currency, error)
}

// walletService implements the WalletService interface.
type walletService struct {
	reader  repository.LedgerReader
	catalog repository.CurrencyCatalog
}

// NewWalletService creates a new instance of WalletService.
func NewWalletService(reader repository.LedgerReader, catalog repository.CurrencyCatalog) WalletService {
	return &walletService{
		reader:  reader,
		catalog: catalog,
	}
}

func (s *walletService) GetBalance(ctx context.Context, userID int64) (*domain.Wallet, error) {
	wallet, err := s.reader.GetWalletByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get balance: failed to get wallet for user %d: %w", userID, err)
	}
	return wallet, nil
}

// GetTransactionHistory retrieves a page of the user's transactions, newest first.
// Users without a wallet get util.ErrWalletNotFound.
func (s *walletService) GetTransactionHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	if limit <= 0 || limit > maxHistoryPageSize || offset < 0 {
		return nil, 0, fmt.Errorf("get transaction history: limit %d offset %d: %w", limit, offset, util.ErrInvalidInput)
	}

	if _, err := s.reader.GetWalletByUserID(ctx, userID); err != nil {
		return nil, 0, fmt.Errorf("get transaction history: %w", err)
	}

	transactions, totalCount, err := s.reader.ListTransactionsByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("get transaction history: failed to retrieve transactions: %w", err)
	}
	return transactions, totalCount, nil
}

func (s *walletService) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	currencies, err := s.catalog.ListCurrencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	return currencies, nil
}
