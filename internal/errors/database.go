package errors

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// PostgreSQL error codes
const (
	// Check violation (constraint failed)
	PgErrorCodeCheckViolation = "23514"
	// Unique violation
	PgErrorCodeUniqueViolation = "23505"
	// Foreign key violation
	PgErrorCodeForeignKeyViolation = "23503"
	// Not null violation
	PgErrorCodeNotNullViolation = "23502"
	// Lock not available (FOR UPDATE NOWAIT failed)
	PgErrorCodeLockNotAvailable = "55P03"
	// Deadlock detected
	PgErrorCodeDeadlockDetected = "40P01"
	// Serialization failure
	PgErrorCodeSerializationFailure = "40001"
)

// HandleDatabaseError converts PostgreSQL errors to domain errors where a
// mapping exists, and otherwise wraps the original error with the failing
// operation name.
func HandleDatabaseError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrap(err, "record not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return handlePostgreSQLError(pgErr, operation)
	}

	return errors.Wrapf(err, "database error during %s", operation)
}

func handlePostgreSQLError(pgErr *pgconn.PgError, operation string) error {
	switch pgErr.Code {
	case PgErrorCodeLockNotAvailable:
		return NewRetryableConflictError(
			"resource is currently locked by another transaction, please retry")

	case PgErrorCodeDeadlockDetected, PgErrorCodeSerializationFailure:
		// Lock order across concurrent multi-batch consumptions is
		// caller-supplied, so overlapping batch sets locked in different
		// orders can deadlock. Surfaced as retryable rather than resolved
		// by reordering.
		return NewRetryableConflictError(
			"transaction conflicted with a concurrent operation, please retry")

	case PgErrorCodeCheckViolation:
		return errors.Errorf("constraint violation during %s: %s", operation, pgErr.Message)

	case PgErrorCodeUniqueViolation:
		return errors.Errorf("duplicate %s: %s", operation, pgErr.Message)

	case PgErrorCodeForeignKeyViolation:
		return errors.Errorf("invalid reference during %s: %s", operation, pgErr.Message)

	case PgErrorCodeNotNullViolation:
		return errors.Errorf("missing required field during %s: %s", operation, pgErr.Message)

	default:
		return errors.Errorf("database error during %s: %s", operation, pgErr.Message)
	}
}

// IsRetryableConflict checks whether err is a lock/serialization conflict
// the caller may retry.
func IsRetryableConflict(err error) bool {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Retryable
	}
	return false
}
