package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/forkful/pantry-service/internal/errors"
	"github.com/forkful/pantry-service/internal/models"
	"github.com/forkful/pantry-service/internal/service"
)

// BatchStorage implements batch persistence using PostgreSQL
type BatchStorage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewBatchStorage creates a new batch storage instance
func NewBatchStorage(pool *pgxpool.Pool, logger *slog.Logger) service.BatchRepository {
	return &BatchStorage{
		pool:   pool,
		logger: logger,
	}
}

const batchColumns = `id, owner_id, ingredient_id, quantity, unit, storage, label,
       expires_at, state, sealed, created_at, updated_at`

func scanBatch(row pgx.Row) (*models.Batch, error) {
	var (
		id           uuid.UUID
		ownerID      string
		ingredientID string
		quantity     float64
		unit         string
		storage      string
		label        string
		expiresAt    time.Time
		state        string
		sealed       bool
		createdAt    time.Time
		updatedAt    time.Time
	)

	if err := row.Scan(&id, &ownerID, &ingredientID, &quantity, &unit, &storage,
		&label, &expiresAt, &state, &sealed, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	return models.RehydrateBatch(id, ownerID, ingredientID, quantity, unit,
		models.StorageLocation(storage), models.LabelType(label), expiresAt,
		models.BatchState(state), sealed, createdAt, updatedAt), nil
}

// GetBatch retrieves a batch by id without locking; nil when absent.
func (s *BatchStorage) GetBatch(ctx context.Context, batchID uuid.UUID) (*models.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM pantry.batches
		WHERE id = $1
	`

	batch, err := scanBatch(s.pool.QueryRow(ctx, query, batchID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.HandleDatabaseError(err, "get_batch")
	}
	return batch, nil
}

// LockBatch retrieves a batch under a row-level exclusive lock held for the
// duration of the enclosing transaction; nil when absent.
func (s *BatchStorage) LockBatch(ctx context.Context, tx interface{}, batchID uuid.UUID) (*models.Batch, error) {
	pgxTx, ok := tx.(pgx.Tx)
	if !ok {
		return nil, fmt.Errorf("invalid transaction type")
	}

	query := `
		SELECT ` + batchColumns + `
		FROM pantry.batches
		WHERE id = $1
		FOR UPDATE
	`

	batch, err := scanBatch(pgxTx.QueryRow(ctx, query, batchID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.HandleDatabaseError(err, "lock_batch")
	}
	return batch, nil
}

// ListBatches retrieves all batches for an owner, newest first.
func (s *BatchStorage) ListBatches(ctx context.Context, ownerID string) ([]*models.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM pantry.batches
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, apperrors.HandleDatabaseError(err, "list_batches")
	}
	defer rows.Close()

	return collectBatches(rows)
}

// FindFEFO retrieves consumable batches for an ingredient ordered by
// ascending expiry. Batches past a use_by date are filtered out even if the
// sweep has not caught them yet.
func (s *BatchStorage) FindFEFO(ctx context.Context, ownerID, ingredientID string, now time.Time) ([]*models.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM pantry.batches
		WHERE owner_id = $1
		  AND ingredient_id = $2
		  AND state IN ('AVAILABLE', 'RESERVED')
		  AND quantity > 0
		ORDER BY expires_at ASC
	`

	rows, err := s.pool.Query(ctx, query, ownerID, ingredientID)
	if err != nil {
		return nil, apperrors.HandleDatabaseError(err, "find_fefo")
	}
	defer rows.Close()

	batches, err := collectBatches(rows)
	if err != nil {
		return nil, err
	}

	out := batches[:0]
	for _, b := range batches {
		if b.CanBeConsumed(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

// FindExpiringSoon retrieves batches expiring within the window, sorted
// descending by urgency score with ties broken by nearer expiry. The score
// is computed in Go so the SQL stays a plain range scan.
func (s *BatchStorage) FindExpiringSoon(ctx context.Context, ownerID string, withinDays int, storage models.StorageLocation, now time.Time) ([]*models.Batch, error) {
	horizon := now.Add(time.Duration(withinDays) * 24 * time.Hour)

	query := `
		SELECT ` + batchColumns + `
		FROM pantry.batches
		WHERE owner_id = $1
		  AND expires_at <= $2
		  AND state IN ('AVAILABLE', 'RESERVED', 'EXPIRING_SOON')
	`
	args := []interface{}{ownerID, horizon}

	if storage != "" {
		query += ` AND storage = $3`
		args = append(args, string(storage))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.HandleDatabaseError(err, "find_expiring_soon")
	}
	defer rows.Close()

	batches, err := collectBatches(rows)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(batches, func(i, j int) bool {
		si := models.BatchUrgency(batches[i], now)
		sj := models.BatchUrgency(batches[j], now)
		if si != sj {
			return si > sj
		}
		return batches[i].ExpiresAt().Before(batches[j].ExpiresAt())
	})

	return batches, nil
}

// CreateBatch inserts a new batch.
func (s *BatchStorage) CreateBatch(ctx context.Context, batch *models.Batch) error {
	query := `
		INSERT INTO pantry.batches (id, owner_id, ingredient_id, quantity, unit,
		                            storage, label, expires_at, state, sealed,
		                            created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		batch.ID(), batch.OwnerID(), batch.IngredientID(), batch.Quantity(),
		batch.Unit(), string(batch.Storage()), string(batch.Label()),
		batch.ExpiresAt(), string(batch.State()), batch.Sealed(),
		batch.CreatedAt(), batch.UpdatedAt(),
	)
	if err != nil {
		return apperrors.HandleDatabaseError(err, "create_batch")
	}
	return nil
}

const saveBatchQuery = `
	INSERT INTO pantry.batches (id, owner_id, ingredient_id, quantity, unit,
	                            storage, label, expires_at, state, sealed,
	                            created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id)
	DO UPDATE SET quantity = $4, unit = $5, storage = $6, label = $7,
	              expires_at = $8, state = $9, sealed = $10, updated_at = $12
`

// SaveBatch upserts a batch outside any transaction.
func (s *BatchStorage) SaveBatch(ctx context.Context, batch *models.Batch) error {
	_, err := s.pool.Exec(ctx, saveBatchQuery, saveBatchArgs(batch)...)
	if err != nil {
		return apperrors.HandleDatabaseError(err, "save_batch")
	}
	return nil
}

// SaveBatchInTx upserts a batch within the given transaction.
func (s *BatchStorage) SaveBatchInTx(ctx context.Context, tx interface{}, batch *models.Batch) error {
	pgxTx, ok := tx.(pgx.Tx)
	if !ok {
		return fmt.Errorf("invalid transaction type")
	}

	_, err := pgxTx.Exec(ctx, saveBatchQuery, saveBatchArgs(batch)...)
	if err != nil {
		return apperrors.HandleDatabaseError(err, "save_batch_in_tx")
	}
	return nil
}

func saveBatchArgs(batch *models.Batch) []interface{} {
	return []interface{}{
		batch.ID(), batch.OwnerID(), batch.IngredientID(), batch.Quantity(),
		batch.Unit(), string(batch.Storage()), string(batch.Label()),
		batch.ExpiresAt(), string(batch.State()), batch.Sealed(),
		batch.CreatedAt(), batch.UpdatedAt(),
	}
}

// SweepExpirations applies the time-based transitions with set-based
// updates in one transaction. Owner-agnostic and idempotent: each statement
// only matches rows the previous run has not already moved.
func (s *BatchStorage) SweepExpirations(ctx context.Context, now time.Time) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, apperrors.HandleDatabaseError(err, "begin_sweep")
	}
	defer tx.Rollback(ctx)

	var total int64

	// Past-date use_by batches are unsafe and expire outright.
	tag, err := tx.Exec(ctx, `
		UPDATE pantry.batches
		SET state = 'EXPIRED', updated_at = $1
		WHERE state IN ('AVAILABLE', 'RESERVED', 'EXPIRING_SOON')
		  AND label = 'use_by'
		  AND expires_at < $1
	`, now)
	if err != nil {
		return 0, apperrors.HandleDatabaseError(err, "sweep_expire")
	}
	total += tag.RowsAffected()

	// Past-date best_before batches are only a quality risk: quarantined
	// for manual review instead of expired.
	tag, err = tx.Exec(ctx, `
		UPDATE pantry.batches
		SET state = 'QUARANTINE', updated_at = $1
		WHERE state IN ('AVAILABLE', 'RESERVED', 'EXPIRING_SOON')
		  AND label = 'best_before'
		  AND expires_at < $1
	`, now)
	if err != nil {
		return 0, apperrors.HandleDatabaseError(err, "sweep_quarantine")
	}
	total += tag.RowsAffected()

	tag, err = tx.Exec(ctx, `
		UPDATE pantry.batches
		SET state = 'EXPIRING_SOON', updated_at = $1
		WHERE state = 'AVAILABLE'
		  AND expires_at > $1
		  AND expires_at <= $1 + INTERVAL '3 days'
	`, now)
	if err != nil {
		return 0, apperrors.HandleDatabaseError(err, "sweep_mark_expiring")
	}
	total += tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return 0, apperrors.HandleDatabaseError(err, "commit_sweep")
	}

	s.logger.Info("expiry sweep complete", "mutated", total)
	return total, nil
}

// BeginTransaction starts a new database transaction
func (s *BatchStorage) BeginTransaction(ctx context.Context) (interface{}, error) {
	return s.pool.Begin(ctx)
}

// CommitTransaction commits a transaction
func (s *BatchStorage) CommitTransaction(tx interface{}) error {
	if pgxTx, ok := tx.(pgx.Tx); ok {
		return pgxTx.Commit(context.Background())
	}
	return nil
}

// RollbackTransaction rolls back a transaction
func (s *BatchStorage) RollbackTransaction(tx interface{}) error {
	if pgxTx, ok := tx.(pgx.Tx); ok {
		return pgxTx.Rollback(context.Background())
	}
	return nil
}

func collectBatches(rows pgx.Rows) ([]*models.Batch, error) {
	var batches []*models.Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, apperrors.HandleDatabaseError(err, "scan_batch")
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.HandleDatabaseError(err, "iterate_batches")
	}
	return batches, nil
}
