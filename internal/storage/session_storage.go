package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	apperrors "github.com/forkful/pantry-service/internal/errors"
	"github.com/forkful/pantry-service/internal/models"
	"github.com/forkful/pantry-service/internal/service"
)

// SessionStorage implements cooking session persistence using PostgreSQL.
// The step list is stored as one JSONB document per session row; the
// consumption log is a separate append-only table.
type SessionStorage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSessionStorage creates a new session storage instance
func NewSessionStorage(pool *pgxpool.Pool, logger *slog.Logger) service.SessionRepository {
	return &SessionStorage{
		pool:   pool,
		logger: logger,
	}
}

const sessionColumns = `id, owner_id, recipe_id, servings, skill_level,
       started_at, finished_at, steps, notes, photo_ref`

func scanSession(row pgx.Row) (*models.CookingSession, error) {
	var (
		snap      models.SessionSnapshot
		stepsJSON []byte
	)

	if err := row.Scan(&snap.ID, &snap.OwnerID, &snap.RecipeID, &snap.Servings,
		&snap.SkillLevel, &snap.StartedAt, &snap.FinishedAt, &stepsJSON,
		&snap.Notes, &snap.PhotoRef); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stepsJSON, &snap.Steps); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal session steps")
	}

	return models.RehydrateSession(snap), nil
}

// GetSession retrieves a session by id without locking; nil when absent.
func (s *SessionStorage) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.CookingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM pantry.cooking_sessions
		WHERE id = $1
	`

	session, err := scanSession(s.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.HandleDatabaseError(err, "get_session")
	}
	return session, nil
}

// GetSessionForUpdate retrieves a session under a row-level exclusive lock.
// The orchestrator locks the session before any batch so concurrent step
// completions on the same session serialize here.
func (s *SessionStorage) GetSessionForUpdate(ctx context.Context, tx interface{}, sessionID uuid.UUID) (*models.CookingSession, error) {
	pgxTx, ok := tx.(pgx.Tx)
	if !ok {
		return nil, fmt.Errorf("invalid transaction type")
	}

	query := `
		SELECT ` + sessionColumns + `
		FROM pantry.cooking_sessions
		WHERE id = $1
		FOR UPDATE
	`

	session, err := scanSession(pgxTx.QueryRow(ctx, query, sessionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.HandleDatabaseError(err, "get_session_for_update")
	}
	return session, nil
}

// CreateSession inserts a new session.
func (s *SessionStorage) CreateSession(ctx context.Context, session *models.CookingSession) error {
	query := `
		INSERT INTO pantry.cooking_sessions (id, owner_id, recipe_id, servings,
		                                     skill_level, started_at, finished_at,
		                                     steps, notes, photo_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	args, err := sessionArgs(session)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return apperrors.HandleDatabaseError(err, "create_session")
	}
	return nil
}

const saveSessionQuery = `
	UPDATE pantry.cooking_sessions
	SET finished_at = $7, steps = $8, notes = $9, photo_ref = $10
	WHERE id = $1
`

// SaveSession persists session mutations outside any transaction.
func (s *SessionStorage) SaveSession(ctx context.Context, session *models.CookingSession) error {
	args, err := sessionArgs(session)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, saveSessionQuery, args...)
	if err != nil {
		return apperrors.HandleDatabaseError(err, "save_session")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("session", session.ID().String())
	}
	return nil
}

// SaveSessionInTx persists session mutations within the given transaction.
func (s *SessionStorage) SaveSessionInTx(ctx context.Context, tx interface{}, session *models.CookingSession) error {
	pgxTx, ok := tx.(pgx.Tx)
	if !ok {
		return fmt.Errorf("invalid transaction type")
	}

	args, err := sessionArgs(session)
	if err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, saveSessionQuery, args...)
	if err != nil {
		return apperrors.HandleDatabaseError(err, "save_session_in_tx")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("session", session.ID().String())
	}
	return nil
}

// AppendConsumptionLog appends entries to the durable consumption history.
// The sequence number continues from the current maximum for the session so
// the log stays strictly append-only.
func (s *SessionStorage) AppendConsumptionLog(ctx context.Context, tx interface{}, sessionID uuid.UUID, stepID string, entries []models.StepConsumption) error {
	if len(entries) == 0 {
		return nil
	}

	pgxTx, ok := tx.(pgx.Tx)
	if !ok {
		return fmt.Errorf("invalid transaction type")
	}

	var seq int64
	err := pgxTx.QueryRow(ctx, `
		SELECT COALESCE(MAX(seq), 0)
		FROM pantry.consumption_log
		WHERE session_id = $1
	`, sessionID).Scan(&seq)
	if err != nil {
		return apperrors.HandleDatabaseError(err, "consumption_log_seq")
	}

	query := `
		INSERT INTO pantry.consumption_log (session_id, step_id, seq,
		                                    ingredient_id, batch_id, quantity,
		                                    unit, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	now := time.Now().UTC()
	for _, entry := range entries {
		seq++
		if _, err := pgxTx.Exec(ctx, query, sessionID, stepID, seq,
			entry.IngredientID, entry.BatchID, entry.Quantity, entry.Unit, now); err != nil {
			return apperrors.HandleDatabaseError(err, "append_consumption_log")
		}
	}
	return nil
}

func sessionArgs(session *models.CookingSession) ([]interface{}, error) {
	snap := session.Snapshot()

	stepsJSON, err := json.Marshal(snap.Steps)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal session steps")
	}

	return []interface{}{
		snap.ID, snap.OwnerID, snap.RecipeID, snap.Servings,
		string(snap.SkillLevel), snap.StartedAt, snap.FinishedAt,
		stepsJSON, snap.Notes, snap.PhotoRef,
	}, nil
}
