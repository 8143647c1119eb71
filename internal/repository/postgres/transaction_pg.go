// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"instantransfer/internal/domain"
	"instantransfer/internal/repository"
	"instantransfer/internal/util"
)

const transactionColumns = `id, user_id, type, amount, currency, status, idempotency_key, balance_after, created_at`

// TransactionRepository appends to and reads the transactions table.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction inserts a terminal transaction record.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
              VALUES (:id, :user_id, :type, :amount, :currency, :status, :idempotency_key, :balance_after, :created_at)`

	_, err := q.NamedExecContext(ctx, query, transaction)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", translateError(err))
	}
	return nil
}

// GetTransactionByIdempotencyKey returns util.ErrNotFound when the key is unused.
func (r *TransactionRepository) GetTransactionByIdempotencyKey(ctx context.Context, q repository.DBExecutor, userID int64, key string) (*domain.Transaction, error) {
	var transaction domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 AND idempotency_key = $2`
	err := q.GetContext(ctx, &transaction, query, userID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by idempotency key for user %d: %w", userID, err)
	}
	return &transaction, nil
}

// GetTransactionsByUserID retrieves a page of the user's transactions and the total count.
func (r *TransactionRepository) GetTransactionsByUserID(ctx context.Context, q repository.DBExecutor, userID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	transactions := []domain.Transaction{}

	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &transactions, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions for user %d: %w", userID, err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM transactions WHERE user_id = $1`
	if err := q.GetContext(ctx, &totalCount, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to get total transaction count for user %d: %w", userID, err)
	}

	return transactions, totalCount, nil
}
