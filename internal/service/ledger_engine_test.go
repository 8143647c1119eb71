// internal/service/ledger_engine_test.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"instantransfer/internal/domain"
	"instantransfer/internal/metrics"
	"instantransfer/internal/rates"
	"instantransfer/internal/repository/memory"
	"instantransfer/internal/util"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newMemoryEngine(t *testing.T, cfg LedgerConfig) (*LedgerEngine, *memory.Store) {
	t.Helper()
	store := memory.NewStore(domain.Currency{Code: "JPY", Name: "Japanese Yen", Decimals: 0})
	return NewLedgerEngine(store, store, new(MockRateClient), cfg, metrics.Noop{}, util.DiscardLogger()), store
}

func testConfig() LedgerConfig {
	cfg := DefaultLedgerConfig()
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func TestDeposit(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesWalletLazily", func(t *testing.T) {
		engine, store := newMemoryEngine(t, testConfig())

		tx, err := engine.Deposit(ctx, 1, dec("10.50"), "usd", "k1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusCompleted, tx.Status)
		assert.Equal(t, domain.TransactionTypeDeposit, tx.Type)
		assert.Equal(t, "USD", tx.Currency)
		assert.True(t, tx.BalanceAfter.Equal(dec("10.50")))

		wallet, err := store.LoadWallet(ctx, 1)
		require.NoError(t, err)
		assert.True(t, wallet.Balance.Equal(dec("10.50")))
		assert.Equal(t, "USD", wallet.Currency)
	})

	t.Run("DefaultCurrencyForNewWallet", func(t *testing.T) {
		cfg := testConfig()
		cfg.DefaultCurrency = "KES"
		engine, store := newMemoryEngine(t, cfg)

		_, err := engine.Deposit(ctx, 2, dec("5"), "", "k1")
		require.NoError(t, err)
		wallet, err := store.LoadWallet(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "KES", wallet.Currency)

		// Later requests without a currency use the wallet's.
		tx, err := engine.Deposit(ctx, 2, dec("5"), "", "k2")
		require.NoError(t, err)
		assert.Equal(t, "KES", tx.Currency)
	})

	t.Run("ReplayCreditsOnce", func(t *testing.T) {
		engine, store := newMemoryEngine(t, testConfig())

		first, err := engine.Deposit(ctx, 3, dec("10"), "USD", "K")
		require.NoError(t, err)
		second, err := engine.Deposit(ctx, 3, dec("10"), "USD", "K")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		wallet, err := store.LoadWallet(ctx, 3)
		require.NoError(t, err)
		assert.True(t, wallet.Balance.Equal(dec("10")))

		txs, total, err := store.ListTransactionsByUserID(ctx, 3, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, txs, 1)
	})

	t.Run("ReplayWithDifferentAmountReturnsOriginal", func(t *testing.T) {
		engine, store := newMemoryEngine(t, testConfig())

		first, err := engine.Deposit(ctx, 4, dec("10"), "USD", "K")
		require.NoError(t, err)
		second, err := engine.Deposit(ctx, 4, dec("99"), "USD", "K")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.True(t, second.Amount.Equal(dec("10")))
		wallet, _ := store.LoadWallet(ctx, 4)
		assert.True(t, wallet.Balance.Equal(dec("10")))
	})

	t.Run("InvalidAmountsCreateNothing", func(t *testing.T) {
		engine, store := newMemoryEngine(t, testConfig())

		for _, amount := range []string{"0", "-5", "0.001", "10.555"} {
			_, err := engine.Deposit(ctx, 5, dec(amount), "USD", "K")
			assert.ErrorIs(t, err, util.ErrInvalidAmount, "amount %s", amount)
		}

		_, err := store.LoadWallet(ctx, 5)
		assert.ErrorIs(t, err, util.ErrWalletNotFound)
		_, err = store.FindTransactionByIdempotencyKey(ctx, 5, "K")
		assert.ErrorIs(t, err, util.ErrNotFound)
	})

	t.Run("TrailingZerosAreNotExtraPrecision", func(t *testing.T) {
		engine, _ := newMemoryEngine(t, testConfig())
		_, err := engine.Deposit(ctx, 6, dec("10.100"), "USD", "K")
		assert.NoError(t, err)
	})

	t.Run("RejectsBadRequests", func(t *testing.T) {
		engine, _ := newMemoryEngine(t, testConfig())

		_, err := engine.Deposit(ctx, 7, dec("1"), "USD", "  ")
		assert.ErrorIs(t, err, util.ErrMissingIdempotencyKey)

		_, err = engine.Deposit(ctx, 7, dec("1"), "US", "K")
		assert.ErrorIs(t, err, util.ErrInvalidCurrency)

		_, err = engine.Deposit(ctx, 7, dec("1"), "U$D", "K")
		assert.ErrorIs(t, err, util.ErrInvalidCurrency)

		_, err = engine.Deposit(ctx, 0, dec("1"), "USD", "K")
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})

	t.Run("KeyLengthLimit", func(t *testing.T) {
		engine, store := newMemoryEngine(t, testConfig())

		_, err := engine.Deposit(ctx, 7, dec("1"), "USD", strings.Repeat("k", MaxIdempotencyKeyLength+1))
		assert.ErrorIs(t, err, util.ErrInvalidInput)
		_, err = store.LoadWallet(ctx, 7)
		assert.ErrorIs(t, err, util.ErrWalletNotFound)

		// The limit counts characters, not bytes.
		_, err = engine.Deposit(ctx, 7, dec("1"), "USD", strings.Repeat("é", MaxIdempotencyKeyLength))
		assert.NoError(t, err)
	})

	t.Run("CurrencyMismatch", func(t *testing.T) {
		engine, store := newMemoryEngine(t, testConfig())
		_, err := engine.Deposit(ctx, 8, dec("1"), "USD", "K1")
		require.NoError(t, err)

		_, err = engine.Deposit(ctx, 8, dec("1"), "EUR", "K2")
		assert.ErrorIs(t, err, util.ErrCurrencyMismatch)

		wallet, _ := store.LoadWallet(ctx, 8)
		assert.True(t, wallet.Balance.Equal(dec("1")))
	})
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		engine, store := newMemoryEngine(t, testConfig())
		_, err := engine.Deposit(ctx, 1, dec("100"), "USD", "d1")
		require.NoError(t, err)

		tx, err := engine.Withdraw(ctx, 1, dec("40.25"), "USD", "w1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusCompleted, tx.Status)
		assert.True(t, tx.BalanceAfter.Equal(dec("59.75")))

		wallet, _ := store.LoadWallet(ctx, 1)
		assert.True(t, wallet.Balance.Equal(dec("59.75")))
	})

	t.Run("InsufficientBalanceRecordsFailure", func(t *testing.T) {
		engine, store := newMemoryEngine(t, testConfig())
		_, err := engine.Deposit(ctx, 2, dec("50"), "USD", "d1")
		require.NoError(t, err)

		tx, err := engine.Withdraw(ctx, 2, dec("100"), "USD", "K1")
		assert.ErrorIs(t, err, util.ErrInsufficientBalance)
		require.NotNil(t, tx)
		assert.Equal(t, domain.TransactionStatusFailed, tx.Status)

		wallet, _ := store.LoadWallet(ctx, 2)
		assert.True(t, wallet.Balance.Equal(dec("50")))

		stored, err := store.FindTransactionByIdempotencyKey(ctx, 2, "K1")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusFailed, stored.Status)

		// Replaying the failed key reports the same outcome without a second record.
		replayed, err := engine.Withdraw(ctx, 2, dec("100"), "USD", "K1")
		assert.ErrorIs(t, err, util.ErrInsufficientBalance)
		assert.Equal(t, tx.ID, replayed.ID)
		_, total, _ := store.ListTransactionsByUserID(ctx, 2, 10, 0)
		assert.Equal(t, int64(2), total)
	})

	t.Run("NoWalletYet", func(t *testing.T) {
		engine, store := newMemoryEngine(t, testConfig())

		tx, err := engine.Withdraw(ctx, 3, dec("1"), "", "K")
		assert.ErrorIs(t, err, util.ErrInsufficientBalance)
		assert.Equal(t, domain.TransactionStatusFailed, tx.Status)
		assert.True(t, tx.BalanceAfter.IsZero())

		// The declined attempt is on record but no wallet was opened.
		_, err = store.LoadWallet(ctx, 3)
		assert.ErrorIs(t, err, util.ErrWalletNotFound)

		replayed, err := engine.Withdraw(ctx, 3, dec("1"), "", "K")
		assert.ErrorIs(t, err, util.ErrInsufficientBalance)
		assert.Equal(t, tx.ID, replayed.ID)

		history, total, err := store.ListTransactionsByUserID(ctx, 3, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, tx.ID, history[0].ID)
	})

	t.Run("DeclineWithoutWalletDoesNotFixCurrency", func(t *testing.T) {
		engine, store := newMemoryEngine(t, testConfig())

		_, err := engine.Withdraw(ctx, 9, dec("1"), "EUR", "w1")
		assert.ErrorIs(t, err, util.ErrInsufficientBalance)

		// First deposit still decides the wallet currency.
		tx, err := engine.Deposit(ctx, 9, dec("10"), "USD", "d1")
		require.NoError(t, err)
		assert.Equal(t, "USD", tx.Currency)

		wallet, err := store.LoadWallet(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, "USD", wallet.Currency)
		assert.True(t, wallet.Balance.Equal(dec("10")))
		assert.Equal(t, int64(1), wallet.Version)
	})

	t.Run("ConcurrentSixtyOnHundred", func(t *testing.T) {
		engine, store := newMemoryEngine(t, testConfig())
		_, err := engine.Deposit(ctx, 4, dec("100"), "USD", "seed")
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = engine.Withdraw(ctx, 4, dec("60"), "USD", fmt.Sprintf("w%d", i))
			}(i)
		}
		close(start)
		wg.Wait()

		var succeeded, declined int
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, util.ErrInsufficientBalance), errors.Is(err, util.ErrConcurrentUpdateConflict):
				declined++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, declined)

		wallet, _ := store.LoadWallet(ctx, 4)
		assert.True(t, wallet.Balance.Equal(dec("40")), "balance %s", wallet.Balance)
	})
}

func TestLedger_ConservationUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxAttempts = 100
	engine, store := newMemoryEngine(t, cfg)

	_, err := engine.Deposit(ctx, 1, dec("100"), "USD", "seed")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("op-%d", i)
			if i%2 == 0 {
				_, _ = engine.Deposit(ctx, 1, dec("7.25"), "USD", key)
			} else {
				_, _ = engine.Withdraw(ctx, 1, dec("19.50"), "USD", key)
			}
		}(i)
	}
	wg.Wait()

	txs, total, err := store.ListTransactionsByUserID(ctx, 1, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(41), total)

	expected := decimal.Zero
	for _, tx := range txs {
		expected = expected.Add(tx.SignedAmount())
		assert.False(t, tx.BalanceAfter.IsNegative())
	}

	wallet, err := store.LoadWallet(ctx, 1)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(expected), "balance %s, ledger sum %s", wallet.Balance, expected)
	assert.False(t, wallet.Balance.IsNegative())
}

func newMockEngine(store *MockLedgerStore, rateClient *MockRateClient) *LedgerEngine {
	return NewLedgerEngine(store, nil, rateClient, testConfig(), metrics.Noop{}, util.DiscardLogger())
}

func TestLedgerEngine_ConflictHandling(t *testing.T) {
	ctx := context.Background()
	wallet := &domain.Wallet{ID: 1, UserID: 1, Currency: "USD", Balance: dec("100"), Version: 3}

	t.Run("RetriesAfterConflict", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := newMockEngine(store, nil)

		store.On("FindTransactionByIdempotencyKey", ctx, int64(1), "K").Return(nil, util.ErrNotFound).Twice()
		store.On("LoadWallet", ctx, int64(1)).Return(wallet, nil).Twice()
		store.On("CommitWalletAndTransaction", ctx, mock.Anything, int64(3), mock.Anything).Return(util.ErrConflict).Once()
		store.On("CommitWalletAndTransaction", ctx, mock.Anything, int64(3), mock.Anything).Return(nil).Once()

		tx, err := engine.Deposit(ctx, 1, dec("5"), "USD", "K")
		require.NoError(t, err)
		assert.True(t, tx.BalanceAfter.Equal(dec("105")))
		store.AssertExpectations(t)
	})

	t.Run("StaleReadIsNotTrusted", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := newMockEngine(store, nil)
		drained := &domain.Wallet{ID: 1, UserID: 1, Currency: "USD", Balance: dec("30"), Version: 4}

		store.On("FindTransactionByIdempotencyKey", ctx, int64(1), "W").Return(nil, util.ErrNotFound).Twice()
		store.On("LoadWallet", ctx, int64(1)).Return(wallet, nil).Once()
		store.On("LoadWallet", ctx, int64(1)).Return(drained, nil).Once()
		store.On("CommitWalletAndTransaction", ctx, mock.Anything, int64(3), mock.Anything).Return(util.ErrConflict).Once()
		store.On("CommitWalletAndTransaction", ctx,
			mock.MatchedBy(func(w *domain.Wallet) bool { return w.Balance.Equal(dec("30")) }),
			int64(4),
			mock.MatchedBy(func(tx *domain.Transaction) bool { return tx.Status == domain.TransactionStatusFailed }),
		).Return(nil).Once()

		tx, err := engine.Withdraw(ctx, 1, dec("60"), "USD", "W")
		assert.ErrorIs(t, err, util.ErrInsufficientBalance)
		assert.Equal(t, domain.TransactionStatusFailed, tx.Status)
		store.AssertExpectations(t)
	})

	t.Run("WalletOpenedDuringDecline", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := newMockEngine(store, nil)

		// A deposit opens the wallet between the load and the decline.
		store.On("FindTransactionByIdempotencyKey", ctx, int64(1), "W").Return(nil, util.ErrNotFound).Twice()
		store.On("LoadWallet", ctx, int64(1)).Return(nil, util.ErrWalletNotFound).Once()
		store.On("AppendTransaction", ctx, mock.MatchedBy(func(tx *domain.Transaction) bool {
			return tx.Status == domain.TransactionStatusFailed && tx.BalanceAfter.IsZero()
		})).Return(util.ErrConflict).Once()
		store.On("LoadWallet", ctx, int64(1)).Return(wallet, nil).Once()
		store.On("CommitWalletAndTransaction", ctx,
			mock.MatchedBy(func(w *domain.Wallet) bool { return w.Balance.Equal(dec("40")) }),
			int64(3), mock.Anything,
		).Return(nil).Once()

		tx, err := engine.Withdraw(ctx, 1, dec("60"), "USD", "W")
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusCompleted, tx.Status)
		store.AssertExpectations(t)
	})

	t.Run("ExhaustsRetries", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := newMockEngine(store, nil)

		store.On("FindTransactionByIdempotencyKey", ctx, int64(1), "K").Return(nil, util.ErrNotFound)
		store.On("LoadWallet", ctx, int64(1)).Return(wallet, nil)
		store.On("CommitWalletAndTransaction", ctx, mock.Anything, mock.Anything, mock.Anything).Return(util.ErrConflict)

		tx, err := engine.Withdraw(ctx, 1, dec("5"), "USD", "K")
		assert.ErrorIs(t, err, util.ErrConcurrentUpdateConflict)
		assert.Nil(t, tx)
		store.AssertNumberOfCalls(t, "CommitWalletAndTransaction", 3)
	})

	t.Run("DuplicateKeyRaceReturnsWinner", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := newMockEngine(store, nil)
		winner := domain.NewTransaction(1, domain.TransactionTypeDeposit, dec("5"), "USD", "K")
		winner.Complete(dec("105"))

		store.On("FindTransactionByIdempotencyKey", ctx, int64(1), "K").Return(nil, util.ErrNotFound).Once()
		store.On("LoadWallet", ctx, int64(1)).Return(wallet, nil).Once()
		store.On("CommitWalletAndTransaction", ctx, mock.Anything, int64(3), mock.Anything).Return(util.ErrDuplicateIdempotencyKey).Once()
		store.On("FindTransactionByIdempotencyKey", ctx, int64(1), "K").Return(winner, nil).Once()

		tx, err := engine.Deposit(ctx, 1, dec("5"), "USD", "K")
		require.NoError(t, err)
		assert.Equal(t, winner.ID, tx.ID)
		store.AssertExpectations(t)
	})

	t.Run("StoreErrorIsNotRetried", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := newMockEngine(store, nil)

		store.On("FindTransactionByIdempotencyKey", ctx, int64(1), "K").Return(nil, util.ErrNotFound).Once()
		store.On("LoadWallet", ctx, int64(1)).Return(wallet, nil).Once()
		store.On("CommitWalletAndTransaction", ctx, mock.Anything, int64(3), mock.Anything).Return(errors.New("connection reset")).Once()

		_, err := engine.Deposit(ctx, 1, dec("5"), "USD", "K")
		assert.ErrorContains(t, err, "connection reset")
		assert.NotErrorIs(t, err, util.ErrConcurrentUpdateConflict)
		store.AssertExpectations(t)
	})

	t.Run("LoadErrorIsSurfaced", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := newMockEngine(store, nil)

		store.On("FindTransactionByIdempotencyKey", ctx, int64(1), "K").Return(nil, util.ErrNotFound).Once()
		store.On("LoadWallet", ctx, int64(1)).Return(nil, errors.New("timeout")).Once()

		_, err := engine.Deposit(ctx, 1, dec("5"), "USD", "K")
		assert.ErrorContains(t, err, "failed to load wallet")
		store.AssertNotCalled(t, "CommitWalletAndTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("CancelledContextCommitsNothing", func(t *testing.T) {
		store := new(MockLedgerStore)
		engine := newMockEngine(store, nil)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := engine.Deposit(cancelled, 1, dec("5"), "USD", "K")
		assert.ErrorIs(t, err, context.Canceled)
		store.AssertNotCalled(t, "CommitWalletAndTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestConvertAndQuote(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundsToTwoDecimals", func(t *testing.T) {
		rc := new(MockRateClient)
		engine := newMockEngine(new(MockLedgerStore), rc)
		rc.On("Quote", ctx, "USD", "KES").Return(dec("150.1234"), nil).Once()

		q, err := engine.ConvertAndQuote(ctx, "usd", "kes", dec("100"))
		require.NoError(t, err)
		assert.Equal(t, "15012.34", q.Converted.StringFixed(2))
		assert.True(t, q.Rate.Equal(dec("150.1234")))
		assert.Equal(t, "USD", q.From)
		assert.Equal(t, "KES", q.To)
	})

	t.Run("RoundsHalfToEven", func(t *testing.T) {
		cases := map[string]string{"0.125": "0.12", "0.135": "0.14", "0.145": "0.14"}
		for rate, want := range cases {
			rc := new(MockRateClient)
			engine := newMockEngine(new(MockLedgerStore), rc)
			rc.On("Quote", ctx, "USD", "EUR").Return(dec(rate), nil).Once()

			q, err := engine.ConvertAndQuote(ctx, "USD", "EUR", dec("1"))
			require.NoError(t, err)
			assert.True(t, q.Converted.Equal(dec(want)), "rate %s: got %s want %s", rate, q.Converted, want)
		}
	})

	t.Run("UsesCatalogPrecision", func(t *testing.T) {
		rc := new(MockRateClient)
		store := memory.NewStore(domain.Currency{Code: "JPY", Decimals: 0})
		engine := NewLedgerEngine(store, store, rc, testConfig(), metrics.Noop{}, util.DiscardLogger())
		rc.On("Quote", ctx, "USD", "JPY").Return(dec("151.5"), nil).Once()

		q, err := engine.ConvertAndQuote(ctx, "USD", "JPY", dec("1.5"))
		require.NoError(t, err)
		assert.True(t, q.Converted.Equal(dec("227")), "got %s", q.Converted)
	})

	t.Run("RejectsBadInput", func(t *testing.T) {
		rc := new(MockRateClient)
		engine := newMockEngine(new(MockLedgerStore), rc)

		_, err := engine.ConvertAndQuote(ctx, "", "KES", dec("1"))
		assert.ErrorIs(t, err, util.ErrInvalidCurrency)
		_, err = engine.ConvertAndQuote(ctx, "USD", "K3S", dec("1"))
		assert.ErrorIs(t, err, util.ErrInvalidCurrency)
		_, err = engine.ConvertAndQuote(ctx, "USD", "KES", dec("0"))
		assert.ErrorIs(t, err, util.ErrInvalidAmount)
		rc.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("RetriesTransientFailureOnce", func(t *testing.T) {
		rc := new(MockRateClient)
		engine := newMockEngine(new(MockLedgerStore), rc)
		rc.On("Quote", ctx, "USD", "KES").Return(decimal.Zero, fmt.Errorf("%w: reset", rates.ErrTransport)).Once()
		rc.On("Quote", ctx, "USD", "KES").Return(dec("150"), nil).Once()

		q, err := engine.ConvertAndQuote(ctx, "USD", "KES", dec("2"))
		require.NoError(t, err)
		assert.True(t, q.Converted.Equal(dec("300")))
		rc.AssertExpectations(t)
	})

	t.Run("GivesUpAfterOneRetry", func(t *testing.T) {
		rc := new(MockRateClient)
		engine := newMockEngine(new(MockLedgerStore), rc)
		rc.On("Quote", ctx, "USD", "KES").Return(decimal.Zero, fmt.Errorf("%w: slow", rates.ErrTimeout))

		_, err := engine.ConvertAndQuote(ctx, "USD", "KES", dec("2"))
		assert.ErrorIs(t, err, util.ErrRateUnavailable)
		assert.ErrorIs(t, err, rates.ErrTimeout)
		rc.AssertNumberOfCalls(t, "Quote", 2)
	})

	t.Run("UnknownPairIsNotRetried", func(t *testing.T) {
		rc := new(MockRateClient)
		engine := newMockEngine(new(MockLedgerStore), rc)
		rc.On("Quote", ctx, "USD", "XYZ").Return(decimal.Zero, rates.ErrUnknownPair)

		_, err := engine.ConvertAndQuote(ctx, "USD", "XYZ", dec("2"))
		assert.ErrorIs(t, err, util.ErrRateUnavailable)
		rc.AssertNumberOfCalls(t, "Quote", 1)
	})
}
