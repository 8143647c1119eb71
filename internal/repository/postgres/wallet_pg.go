// internal/repository/postgres/wallet_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"instantransfer/internal/domain"
	"instantransfer/internal/repository"
	"instantransfer/internal/util"
)

// WalletRepository reads and writes the wallets table through a DBExecutor.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository() *WalletRepository {
	return &WalletRepository{}
}

// GetWalletByUserID returns util.ErrWalletNotFound when the user has no wallet.
func (r *WalletRepository) GetWalletByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT id, user_id, currency, balance, version, created_at, updated_at FROM wallets WHERE user_id = $1`
	err := q.GetContext(ctx, &wallet, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet for user %d: %w", userID, err)
	}
	return &wallet, nil
}

// InsertWallet creates the wallet row at version 1. It returns false when a
// concurrent writer created the user's wallet first.
func (r *WalletRepository) InsertWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) (bool, error) {
	query := `INSERT INTO wallets (user_id, currency, balance, version, created_at, updated_at)
              VALUES ($1, $2, $3, 1, $4, $5)
              ON CONFLICT (user_id) DO NOTHING
              RETURNING id`
	err := q.QueryRowContext(ctx, query, wallet.UserID, wallet.Currency, wallet.Balance, wallet.CreatedAt, wallet.UpdatedAt).Scan(&wallet.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create wallet for user %d: %w", wallet.UserID, err)
	}
	wallet.Version = 1
	return true, nil
}

// UpdateWalletBalance writes the new balance only if the row is still at
// expectedVersion, and bumps the version. Zero affected rows is util.ErrConflict.
func (r *WalletRepository) UpdateWalletBalance(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet, expectedVersion int64) error {
	query := `UPDATE wallets SET balance = $1, version = version + 1, updated_at = $2
              WHERE user_id = $3 AND version = $4`
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx, query, wallet.Balance, now, wallet.UserID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance for user %d: %w", wallet.UserID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating wallet for user %d: %w", wallet.UserID, err)
	}
	if rowsAffected == 0 {
		return util.ErrConflict
	}
	wallet.Version = expectedVersion + 1
	wallet.UpdatedAt = now
	return nil
}
