// internal/repository/postgres/currency_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"instantransfer/internal/domain"
	"instantransfer/internal/repository"
	"instantransfer/internal/util"
)

// CurrencyRepository manages the currencies table.
type CurrencyRepository struct{}

// NewCurrencyRepository creates a new CurrencyRepository.
func NewCurrencyRepository() *CurrencyRepository {
	return &CurrencyRepository{}
}

func (r *CurrencyRepository) GetCurrency(ctx context.Context, q repository.DBExecutor, code string) (*domain.Currency, error) {
	var currency domain.Currency
	query := `SELECT code, name, exchange_rate, decimals, updated_at FROM currencies WHERE code = $1`
	if err := q.GetContext(ctx, &currency, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get currency %s: %w", code, err)
	}
	return &currency, nil
}

func (r *CurrencyRepository) ListCurrencies(ctx context.Context, q repository.DBExecutor) ([]domain.Currency, error) {
	currencies := []domain.Currency{}
	query := `SELECT code, name, exchange_rate, decimals, updated_at FROM currencies ORDER BY code`
	if err := q.SelectContext(ctx, &currencies, query); err != nil {
		return nil, fmt.Errorf("failed to list currencies: %w", err)
	}
	return currencies, nil
}

// UpsertRate sets the exchange rate for code, creating the row with the
// default precision when missing. Name and decimals of existing rows are kept.
func (r *CurrencyRepository) UpsertRate(ctx context.Context, q repository.DBExecutor, code string, rate decimal.Decimal, updatedAt time.Time) error {
	query := `INSERT INTO currencies (code, name, exchange_rate, decimals, updated_at)
              VALUES ($1, $1, $2, $3, $4)
              ON CONFLICT (code) DO UPDATE SET exchange_rate = EXCLUDED.exchange_rate, updated_at = EXCLUDED.updated_at`
	if _, err := q.ExecContext(ctx, query, code, rate, domain.DefaultCurrencyDecimals, updatedAt); err != nil {
		return fmt.Errorf("failed to upsert rate for %s: %w", code, err)
	}
	return nil
}
