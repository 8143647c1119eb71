// internal/domain/wallet.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Wallet holds a single user's balance in one currency.
// Version is the consistency token: 0 means the row does not exist yet,
// persisted rows start at 1 and grow by one on every committed change.
type Wallet struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`   // Unique, one wallet per user
	Currency  string          `db:"currency" json:"currency"` // ISO-4217 style code, e.g. "USD"
	Balance   decimal.Decimal `db:"balance" json:"balance"`   // NUMERIC(20, 4) in DB, never negative
	Version   int64           `db:"version" json:"-"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// NewWallet creates an unsaved zero-balance wallet for userID.
func NewWallet(userID int64, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		UserID:    userID,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Exists reports whether the wallet has been persisted.
func (w *Wallet) Exists() bool {
	return w.Version > 0
}

// WithBalance returns a copy of w carrying the new balance.
func (w Wallet) WithBalance(balance decimal.Decimal) *Wallet {
	w.Balance = balance
	w.UpdatedAt = time.Now().UTC()
	return &w
}
