package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/forkful/pantry-service/internal/models"
)

// PantryService defines the business logic for single-batch lifecycle
// operations and batch searches
type PantryService interface {
	AddBatch(ctx context.Context, callerID string, req *models.AddBatchRequest) (*models.Batch, error)
	GetBatch(ctx context.Context, callerID string, batchID uuid.UUID) (*models.Batch, error)
	ListBatches(ctx context.Context, callerID string) ([]*models.BatchResponse, error)
	ReserveBatch(ctx context.Context, callerID string, batchID uuid.UUID) (*models.Batch, error)
	FreezeBatch(ctx context.Context, callerID string, batchID uuid.UUID, newExpiry time.Time) (*models.Batch, error)
	QuarantineBatch(ctx context.Context, callerID string, batchID uuid.UUID) (*models.Batch, error)
	DiscardBatch(ctx context.Context, callerID string, batchID uuid.UUID) (*models.Batch, error)
	FindFEFO(ctx context.Context, callerID, ingredientID string) ([]*models.Batch, error)
	FindExpiringSoon(ctx context.Context, callerID string, withinDays int, storage models.StorageLocation) ([]*models.BatchResponse, error)
}

// SessionService defines the business logic for cooking sessions
type SessionService interface {
	StartSession(ctx context.Context, callerID string, req *models.StartSessionRequest) (*models.CookingSession, error)
	GetSession(ctx context.Context, callerID string, sessionID uuid.UUID) (*models.CookingSession, error)
	FinishSession(ctx context.Context, callerID string, sessionID uuid.UUID, req *models.FinishSessionRequest) (*models.FinishSessionResponse, error)
}

// CompleteStepCommand is the input of the consumption orchestrator.
// Consumptions are processed, and their batches locked, in the given order.
type CompleteStepCommand struct {
	SessionID    uuid.UUID
	StepID       string
	CallerID     string
	TimerSeconds *int64
	Consumptions []models.ConsumptionRequest
}

// ConsumptionOrchestrator executes a step completion as one transaction:
// every referenced batch is locked, validated and deducted, the consumption
// log appended and the step committed, or nothing is persisted at all
type ConsumptionOrchestrator interface {
	CompleteStep(ctx context.Context, cmd *CompleteStepCommand) (*models.CompleteStepResponse, error)
}

// CachedResponse is a replayable response held by the idempotency layer
type CachedResponse struct {
	Status int
	Body   []byte
}

// IdempotencyService guarantees at-most-once execution of mutating
// endpoints per (key, caller, endpoint, body) tuple within the TTL window
type IdempotencyService interface {
	// Check returns the cached response for a matching live record, nil
	// when the caller should execute the real operation, and a Conflict
	// error when the key is being reused with a different body.
	Check(ctx context.Context, key, callerID, endpoint, bodyHash string) (*CachedResponse, error)
	Store(ctx context.Context, key, callerID, endpoint, bodyHash string, status int, body []byte, ttl time.Duration) error
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

// SweepService advances batch states based on elapsed time
type SweepService interface {
	RunSweep(ctx context.Context, now time.Time) (int64, error)
}

// BatchRepository defines batch persistence. Lookups return (nil, nil) when
// the id does not resolve; the caller decides what absence means.
type BatchRepository interface {
	GetBatch(ctx context.Context, batchID uuid.UUID) (*models.Batch, error)

	// LockBatch acquires a row-level exclusive lock held for the duration
	// of the enclosing transaction.
	LockBatch(ctx context.Context, tx interface{}, batchID uuid.UUID) (*models.Batch, error)

	ListBatches(ctx context.Context, ownerID string) ([]*models.Batch, error)

	// FindFEFO returns consumable batches for the ingredient ordered by
	// ascending expiry. Callers must consume from the front first.
	FindFEFO(ctx context.Context, ownerID, ingredientID string, now time.Time) ([]*models.Batch, error)

	// FindExpiringSoon returns batches expiring within the window sorted
	// descending by urgency score, ties broken by nearer expiry.
	FindExpiringSoon(ctx context.Context, ownerID string, withinDays int, storage models.StorageLocation, now time.Time) ([]*models.Batch, error)

	CreateBatch(ctx context.Context, batch *models.Batch) error
	SaveBatch(ctx context.Context, batch *models.Batch) error
	SaveBatchInTx(ctx context.Context, tx interface{}, batch *models.Batch) error

	// SweepExpirations applies the time-based transitions across all
	// batches with set-based updates; idempotent for a fixed now.
	SweepExpirations(ctx context.Context, now time.Time) (int64, error)

	BeginTransaction(ctx context.Context) (interface{}, error)
	CommitTransaction(tx interface{}) error
	RollbackTransaction(tx interface{}) error
}

// SessionRepository defines cooking session persistence. The orchestrator
// shares one transaction between batch and session writes, so the tx handle
// produced by BatchRepository.BeginTransaction is accepted here too.
type SessionRepository interface {
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.CookingSession, error)
	GetSessionForUpdate(ctx context.Context, tx interface{}, sessionID uuid.UUID) (*models.CookingSession, error)
	CreateSession(ctx context.Context, session *models.CookingSession) error
	SaveSession(ctx context.Context, session *models.CookingSession) error
	SaveSessionInTx(ctx context.Context, tx interface{}, session *models.CookingSession) error

	// AppendConsumptionLog appends to the durable, append-only consumption
	// history keyed by (session, step, sequence).
	AppendConsumptionLog(ctx context.Context, tx interface{}, sessionID uuid.UUID, stepID string, entries []models.StepConsumption) error
}

// IdempotencyRepository defines idempotency record persistence
type IdempotencyRepository interface {
	// Get returns the live record for the tuple, nil when absent or expired.
	Get(ctx context.Context, key, callerID, endpoint string) (*models.IdempotencyRecord, error)

	// Put removes any existing record for the tuple before inserting, so
	// storing the same outcome twice is harmless.
	Put(ctx context.Context, record *models.IdempotencyRecord) error

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CacheInterface defines the caching interface
type CacheInterface interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
}

// MetricsInterface defines the business metrics recorded by services
type MetricsInterface interface {
	RecordConsumption(batches int, duration time.Duration, status string)
	RecordSweep(mutated int64, duration time.Duration)
	RecordIdempotency(outcome string)
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// CacheManager defines cache invalidation for committed mutations
type CacheManager interface {
	InvalidateOwnerCache(ctx context.Context, ownerID string) error
}

// RepositoryInterfaces aggregates all repositories needed by services
type RepositoryInterfaces struct {
	Batch       BatchRepository
	Session     SessionRepository
	Idempotency IdempotencyRepository
}

// ServiceDependencies aggregates all dependencies needed by services.
// Constructed once per process and passed in explicitly, never looked up
// through ambient globals.
type ServiceDependencies struct {
	Repositories *RepositoryInterfaces
	Cache        CacheInterface
	Metrics      MetricsInterface
	Logger       *slog.Logger
}
