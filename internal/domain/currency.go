// internal/domain/currency.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrencyDecimals is the display precision used when a currency
// is not in the catalog.
const DefaultCurrencyDecimals int32 = 2

// Currency is a catalog entry. ExchangeRate is relative to the base currency
// the rate refresher last pulled.
type Currency struct {
	Code         string          `db:"code" json:"code"`
	Name         string          `db:"name" json:"name"`
	ExchangeRate decimal.Decimal `db:"exchange_rate" json:"exchange_rate"`
	Decimals     int32           `db:"decimals" json:"decimals"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Quote is the result of a currency conversion. It is never persisted.
type Quote struct {
	From      string          `json:"from_currency"`
	To        string          `json:"to_currency"`
	Amount    decimal.Decimal `json:"amount"`
	Rate      decimal.Decimal `json:"rate"`
	Converted decimal.Decimal `json:"converted_amount"`
}
