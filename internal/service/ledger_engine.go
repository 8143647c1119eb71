// internal/service/ledger_engine.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"instantransfer/internal/domain"
	"instantransfer/internal/metrics"
	"instantransfer/internal/rates"
	"instantransfer/internal/repository"
	"instantransfer/internal/util"
)

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// MaxIdempotencyKeyLength matches the width of transactions.idempotency_key.
const MaxIdempotencyKeyLength = 255

// LedgerConfig tunes the engine.
type LedgerConfig struct {
	MaxAttempts     int           // commit attempts per operation, including the first
	RetryBackoff    time.Duration // base delay between attempts, multiplied by the attempt number
	AmountScale     int32         // maximum fractional digits of an amount
	DefaultCurrency string        // currency of wallets created by a request without one
}

// DefaultLedgerConfig returns the production defaults.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxAttempts:     3,
		RetryBackoff:    5 * time.Millisecond,
		AmountScale:     2,
		DefaultCurrency: "USD",
	}
}

// LedgerEngine is the only writer of wallet balances. Every deposit and
// withdrawal runs load, validate, mutate and a version-checked commit, and
// starts over from the load when the commit loses a race.
type LedgerEngine struct {
	store   repository.LedgerStore
	catalog repository.CurrencyCatalog
	rates   rates.Client
	cfg     LedgerConfig
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewLedgerEngine creates the engine. catalog may be nil, in which case every
// currency is converted with two decimals.
func NewLedgerEngine(
	store repository.LedgerStore,
	catalog repository.CurrencyCatalog,
	rateClient rates.Client,
	cfg LedgerConfig,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *LedgerEngine {
	defaults := DefaultLedgerConfig()
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.AmountScale < 0 {
		cfg.AmountScale = defaults.AmountScale
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = defaults.DefaultCurrency
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &LedgerEngine{
		store:   store,
		catalog: catalog,
		rates:   rateClient,
		cfg:     cfg,
		metrics: recorder,
		logger:  logger,
	}
}

// Deposit credits amount to the user's wallet, creating the wallet on first use.
// Replaying an idempotency key returns the original transaction unchanged.
func (e *LedgerEngine) Deposit(ctx context.Context, userID int64, amount decimal.Decimal, currency, idempotencyKey string) (*domain.Transaction, error) {
	return e.apply(ctx, domain.TransactionTypeDeposit, userID, amount, currency, idempotencyKey)
}

// Withdraw debits amount. On insufficient balance a failed transaction is
// recorded and returned together with util.ErrInsufficientBalance.
func (e *LedgerEngine) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, currency, idempotencyKey string) (*domain.Transaction, error) {
	return e.apply(ctx, domain.TransactionTypeWithdraw, userID, amount, currency, idempotencyKey)
}

func (e *LedgerEngine) apply(ctx context.Context, txType domain.TransactionType, userID int64, amount decimal.Decimal, currency, idempotencyKey string) (*domain.Transaction, error) {
	op := string(txType)
	start := time.Now()
	status := metrics.StatusError
	defer func() { e.metrics.ObserveOperation(op, status, time.Since(start)) }()

	if userID <= 0 {
		status = metrics.StatusRejected
		return nil, fmt.Errorf("%s: user id %d: %w", op, userID, util.ErrInvalidInput)
	}
	if err := e.validateAmount(amount); err != nil {
		status = metrics.StatusRejected
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		status = metrics.StatusRejected
		return nil, fmt.Errorf("%s: %w", op, util.ErrMissingIdempotencyKey)
	}
	if utf8.RuneCountInString(idempotencyKey) > MaxIdempotencyKeyLength {
		status = metrics.StatusRejected
		return nil, fmt.Errorf("%s: idempotency key longer than %d characters: %w", op, MaxIdempotencyKeyLength, util.ErrInvalidInput)
	}
	if currency != "" {
		code, err := normalizeCurrency(currency)
		if err != nil {
			status = metrics.StatusRejected
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		currency = code
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		existing, err := e.store.FindTransactionByIdempotencyKey(ctx, userID, idempotencyKey)
		if err == nil {
			status = metrics.StatusReplay
			return e.replay(op, existing, txType, amount, currency)
		}
		if !errors.Is(err, util.ErrNotFound) {
			return nil, fmt.Errorf("%s: failed to check idempotency key: %w", op, err)
		}

		walletCurrency := currency
		if walletCurrency == "" {
			walletCurrency = e.cfg.DefaultCurrency
		}

		var (
			tx      *domain.Transaction
			outcome error
		)
		wallet, err := e.store.LoadWallet(ctx, userID)
		switch {
		case errors.Is(err, util.ErrWalletNotFound) && txType == domain.TransactionTypeWithdraw:
			// Wallets open on first deposit; a declined withdrawal only leaves its record.
			tx = domain.NewTransaction(userID, txType, amount, walletCurrency, idempotencyKey)
			tx.Fail(decimal.Zero)
			outcome = util.ErrInsufficientBalance
			err = e.store.AppendTransaction(ctx, tx)

		case err != nil && !errors.Is(err, util.ErrWalletNotFound):
			return nil, fmt.Errorf("%s: failed to load wallet for user %d: %w", op, userID, err)

		default:
			if err != nil {
				wallet = domain.NewWallet(userID, walletCurrency)
			}
			if currency != "" && currency != wallet.Currency {
				status = metrics.StatusRejected
				return nil, fmt.Errorf("%s: wallet holds %s, request is %s: %w", op, wallet.Currency, currency, util.ErrCurrencyMismatch)
			}
			expectedVersion := wallet.Version
			var next *domain.Wallet
			next, tx, outcome = e.mutate(wallet, txType, amount, idempotencyKey)
			err = e.store.CommitWalletAndTransaction(ctx, next, expectedVersion, tx)
		}

		switch {
		case err == nil:
			if outcome != nil {
				status = metrics.StatusFailed
				e.logger.Info("withdrawal declined", "user_id", userID, "amount", amount, "balance", tx.BalanceAfter, "transaction_id", tx.ID)
				return tx, fmt.Errorf("%s: %w", op, outcome)
			}
			status = metrics.StatusSuccess
			e.logger.Info("ledger transaction committed", "operation", op, "user_id", userID, "amount", amount,
				"balance", tx.BalanceAfter, "transaction_id", tx.ID, "attempt", attempt)
			return tx, nil

		case errors.Is(err, util.ErrDuplicateIdempotencyKey):
			// A concurrent request with the same key won the race.
			if existing, lookupErr := e.store.FindTransactionByIdempotencyKey(ctx, userID, idempotencyKey); lookupErr == nil {
				status = metrics.StatusReplay
				return e.replay(op, existing, txType, amount, currency)
			}

		case !errors.Is(err, util.ErrConflict):
			return nil, fmt.Errorf("%s: failed to commit: %w", op, err)
		}

		if attempt >= e.cfg.MaxAttempts {
			e.logger.Warn("giving up after concurrent updates", "operation", op, "user_id", userID, "attempts", attempt)
			return nil, fmt.Errorf("%s: %w", op, util.ErrConcurrentUpdateConflict)
		}
		e.metrics.IncConflictRetry(op)
		e.logger.Debug("commit conflict, retrying", "operation", op, "user_id", userID, "attempt", attempt, "error", err)
		if err := e.wait(ctx, attempt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
}

// mutate builds the wallet state and terminal transaction for one attempt.
// A non-nil outcome means the transaction is recorded as failed.
func (e *LedgerEngine) mutate(wallet *domain.Wallet, txType domain.TransactionType, amount decimal.Decimal, key string) (*domain.Wallet, *domain.Transaction, error) {
	tx := domain.NewTransaction(wallet.UserID, txType, amount, wallet.Currency, key)

	switch txType {
	case domain.TransactionTypeWithdraw:
		if wallet.Balance.LessThan(amount) {
			tx.Fail(wallet.Balance)
			return wallet.WithBalance(wallet.Balance), tx, util.ErrInsufficientBalance
		}
		next := wallet.WithBalance(wallet.Balance.Sub(amount))
		tx.Complete(next.Balance)
		return next, tx, nil
	default:
		next := wallet.WithBalance(wallet.Balance.Add(amount))
		tx.Complete(next.Balance)
		return next, tx, nil
	}
}

// replay answers a repeated idempotency key with the stored outcome.
func (e *LedgerEngine) replay(op string, existing *domain.Transaction, txType domain.TransactionType, amount decimal.Decimal, currency string) (*domain.Transaction, error) {
	if existing.Type != txType || !existing.Amount.Equal(amount) || (currency != "" && currency != existing.Currency) {
		e.logger.Warn("idempotency key reused with different parameters",
			"operation", op, "user_id", existing.UserID, "idempotency_key", existing.IdempotencyKey,
			"stored_type", existing.Type, "stored_amount", existing.Amount, "requested_amount", amount)
	} else {
		e.logger.Debug("idempotent replay", "operation", op, "user_id", existing.UserID, "transaction_id", existing.ID)
	}
	if existing.Status == domain.TransactionStatusFailed {
		return existing, fmt.Errorf("%s: %w", op, util.ErrInsufficientBalance)
	}
	return existing, nil
}

func (e *LedgerEngine) wait(ctx context.Context, attempt int) error {
	if e.cfg.RetryBackoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.cfg.RetryBackoff * time.Duration(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *LedgerEngine) validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(e.cfg.AmountScale)) {
		return util.ErrInvalidAmount
	}
	return nil
}

// ConvertAndQuote prices amount of from in to. Transient rate failures are
// retried once; anything left over is reported as util.ErrRateUnavailable.
func (e *LedgerEngine) ConvertAndQuote(ctx context.Context, from, to string, amount decimal.Decimal) (*domain.Quote, error) {
	start := time.Now()
	status := metrics.StatusError
	defer func() { e.metrics.ObserveOperation("convert", status, time.Since(start)) }()

	if !amount.IsPositive() {
		status = metrics.StatusRejected
		return nil, fmt.Errorf("convert: %w", util.ErrInvalidAmount)
	}
	fromCode, err := normalizeCurrency(from)
	if err != nil {
		status = metrics.StatusRejected
		return nil, fmt.Errorf("convert: from: %w", err)
	}
	toCode, err := normalizeCurrency(to)
	if err != nil {
		status = metrics.StatusRejected
		return nil, fmt.Errorf("convert: to: %w", err)
	}

	rate, err := e.rates.Quote(ctx, fromCode, toCode)
	if err != nil && rates.IsRetryable(err) && ctx.Err() == nil {
		e.logger.Warn("rate lookup failed, retrying once", "from", fromCode, "to", toCode, "error", err)
		rate, err = e.rates.Quote(ctx, fromCode, toCode)
	}
	if err != nil {
		e.metrics.ObserveRateQuote(metrics.StatusError)
		return nil, fmt.Errorf("convert: %w: %w", util.ErrRateUnavailable, err)
	}
	if !rate.IsPositive() {
		e.metrics.ObserveRateQuote(metrics.StatusError)
		return nil, fmt.Errorf("convert: %w: non-positive rate %s", util.ErrRateUnavailable, rate)
	}
	e.metrics.ObserveRateQuote(metrics.StatusSuccess)

	status = metrics.StatusSuccess
	return &domain.Quote{
		From:      fromCode,
		To:        toCode,
		Amount:    amount,
		Rate:      rate,
		Converted: amount.Mul(rate).RoundBank(e.decimalsFor(ctx, toCode)),
	}, nil
}

func (e *LedgerEngine) decimalsFor(ctx context.Context, code string) int32 {
	if e.catalog == nil {
		return domain.DefaultCurrencyDecimals
	}
	currency, err := e.catalog.GetCurrency(ctx, code)
	if err != nil {
		if !errors.Is(err, util.ErrNotFound) {
			e.logger.Warn("currency lookup failed, using default precision", "code", code, "error", err)
		}
		return domain.DefaultCurrencyDecimals
	}
	return currency.Decimals
}

func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !currencyCodePattern.MatchString(code) {
		return "", fmt.Errorf("%q: %w", code, util.ErrInvalidCurrency)
	}
	return code, nil
}
