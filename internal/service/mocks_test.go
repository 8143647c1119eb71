// internal/service/mocks_test.go
package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"instantransfer/internal/domain"
)

// MockLedgerStore is a mock implementation of repository.LedgerStore.
type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) LoadWallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	w := *args.Get(0).(*domain.Wallet)
	return &w, args.Error(1)
}

func (m *MockLedgerStore) CommitWalletAndTransaction(ctx context.Context, wallet *domain.Wallet, expectedVersion int64, tx *domain.Transaction) error {
	args := m.Called(ctx, wallet, expectedVersion, tx)
	return args.Error(0)
}

func (m *MockLedgerStore) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockLedgerStore) FindTransactionByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Transaction, error) {
	args := m.Called(ctx, userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

// MockLedgerReader is a mock implementation of repository.LedgerReader.
type MockLedgerReader struct {
	mock.Mock
}

func (m *MockLedgerReader) GetWalletByUserID(ctx context.Context, userID int64) (*domain.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockLedgerReader) ListTransactionsByUserID(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Transaction), args.Get(1).(int64), args.Error(2)
}

// MockRateClient is a mock implementation of rates.Client.
type MockRateClient struct {
	mock.Mock
}

func (m *MockRateClient) Quote(ctx context.Context, from, to string) (decimal.Decimal, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRateClient) LatestRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

// MockCurrencyCatalog is a mock implementation of repository.CurrencyCatalog.
type MockCurrencyCatalog struct {
	mock.Mock
}

func (m *MockCurrencyCatalog) GetCurrency(ctx context.Context, code string) (*domain.Currency, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Currency), args.Error(1)
}

func (m *MockCurrencyCatalog) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Currency), args.Error(1)
}

func (m *MockCurrencyCatalog) UpsertRates(ctx context.Context, base string, rates map[string]decimal.Decimal) (int, error) {
	args := m.Called(ctx, base, rates)
	return args.Int(0), args.Error(1)
}
