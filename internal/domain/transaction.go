// internal/domain/transaction.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType defines the type of a money movement.
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdraw"
)

// TransactionStatus defines the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is an immutable record of a deposit or withdrawal attempt.
// Pending records only ever exist in memory; the store sees completed or failed.
type Transaction struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	UserID         int64             `db:"user_id" json:"user_id"`
	Type           TransactionType   `db:"type" json:"type"`
	Amount         decimal.Decimal   `db:"amount" json:"amount"`
	Currency       string            `db:"currency" json:"currency"`
	Status         TransactionStatus `db:"status" json:"status"`
	IdempotencyKey string            `db:"idempotency_key" json:"idempotency_key"`
	BalanceAfter   decimal.Decimal   `db:"balance_after" json:"balance_after"`
	CreatedAt      time.Time         `db:"created_at" json:"date"`
}

// NewTransaction creates a pending transaction with a fresh ID.
func NewTransaction(userID int64, txType TransactionType, amount decimal.Decimal, currency, idempotencyKey string) *Transaction {
	return &Transaction{
		ID:             uuid.New(),
		UserID:         userID,
		Type:           txType,
		Amount:         amount,
		Currency:       currency,
		Status:         TransactionStatusPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
}

// Complete marks the transaction completed with the resulting balance.
func (t *Transaction) Complete(balanceAfter decimal.Decimal) {
	t.Status = TransactionStatusCompleted
	t.BalanceAfter = balanceAfter
}

// Fail marks the transaction failed; the balance is left as it was.
func (t *Transaction) Fail(balance decimal.Decimal) {
	t.Status = TransactionStatusFailed
	t.BalanceAfter = balance
}

// IsTerminal reports whether the transaction can no longer change.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}

// SignedAmount is the balance delta a completed transaction applied.
// Failed and pending transactions applied nothing.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Status != TransactionStatusCompleted {
		return decimal.Zero
	}
	if t.Type == TransactionTypeWithdraw {
		return t.Amount.Neg()
	}
	return t.Amount
}
