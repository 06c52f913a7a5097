package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	apperrors "github.com/forkful/pantry-service/internal/errors"
	"github.com/forkful/pantry-service/internal/models"
	"github.com/forkful/pantry-service/internal/service"
)

// IdempotencyStorage implements idempotency record persistence using sqlx.
type IdempotencyStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewIdempotencyStorage creates a new idempotency storage instance
func NewIdempotencyStorage(db *sqlx.DB, logger *slog.Logger) service.IdempotencyRepository {
	return &IdempotencyStorage{
		db:     db,
		logger: logger,
	}
}

// Get returns the live record for the tuple, nil when absent or expired.
// Expired rows are treated as absent even before the cleanup job removes them.
func (s *IdempotencyStorage) Get(ctx context.Context, key, callerID, endpoint string) (*models.IdempotencyRecord, error) {
	query := `
		SELECT idempotency_key, caller_id, endpoint, body_hash,
		       response_status, response_body, expires_at, created_at
		FROM pantry.idempotency_records
		WHERE idempotency_key = $1 AND caller_id = $2 AND endpoint = $3
		  AND expires_at > NOW()
	`

	var record models.IdempotencyRecord
	err := s.db.GetContext(ctx, &record, query, key, callerID, endpoint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.HandleDatabaseError(err, "get_idempotency_record")
	}
	return &record, nil
}

// Put replaces any existing record for the tuple with the given one, so
// storing the same outcome twice is harmless and the newest write wins.
func (s *IdempotencyStorage) Put(ctx context.Context, record *models.IdempotencyRecord) error {
	query := `
		INSERT INTO pantry.idempotency_records (idempotency_key, caller_id,
		                                        endpoint, body_hash,
		                                        response_status, response_body,
		                                        expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key, caller_id, endpoint)
		DO UPDATE SET body_hash = $4, response_status = $5, response_body = $6,
		              expires_at = $7, created_at = $8
	`

	_, err := s.db.ExecContext(ctx, query,
		record.Key, record.CallerID, record.Endpoint, record.BodyHash,
		record.ResponseStatus, record.ResponseBody, record.ExpiresAt,
		record.CreatedAt,
	)
	if err != nil {
		return apperrors.HandleDatabaseError(err, "put_idempotency_record")
	}
	return nil
}

// DeleteExpired removes records whose TTL has elapsed, returning the count.
func (s *IdempotencyStorage) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM pantry.idempotency_records
		WHERE expires_at <= $1
	`

	result, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, apperrors.HandleDatabaseError(err, "delete_expired_idempotency")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read affected rows")
	}

	if deleted > 0 {
		s.logger.Debug("expired idempotency records removed", "count", deleted)
	}
	return deleted, nil
}
