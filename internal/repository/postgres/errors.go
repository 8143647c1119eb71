// internal/repository/postgres/errors.go
package postgres

import (
	"errors"

	"github.com/lib/pq"

	"instantransfer/internal/util"
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"

	idempotencyConstraint = "transactions_user_idempotency_key"
)

// translateError maps PostgreSQL error codes onto ledger sentinels and keeps
// the driver error in the chain.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		if pqErr.Constraint == idempotencyConstraint {
			return errors.Join(util.ErrDuplicateIdempotencyKey, err)
		}
	case pqSerializationFailure, pqDeadlockDetected:
		return errors.Join(util.ErrConflict, err)
	}
	return err
}
