package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	apperrors "github.com/forkful/pantry-service/internal/errors"
	"github.com/forkful/pantry-service/internal/models"
)

// pantryService implements PantryService
type pantryService struct {
	deps *ServiceDependencies
}

// NewPantryService creates a new pantry service
func NewPantryService(deps *ServiceDependencies) PantryService {
	return &pantryService{deps: deps}
}

// AddBatch creates a new batch in state AVAILABLE.
func (s *pantryService) AddBatch(ctx context.Context, callerID string, req *models.AddBatchRequest) (*models.Batch, error) {
	if err := models.ValidateAddBatchRequest(req); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	batch, err := models.NewBatch(
		callerID,
		req.IngredientID,
		req.Quantity,
		req.Unit,
		models.StorageLocation(req.Storage),
		models.LabelType(req.Label),
		req.ExpiresAt,
		req.Sealed,
	)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Repositories.Batch.CreateBatch(ctx, batch); err != nil {
		return nil, errors.Wrap(err, "failed to create batch")
	}

	s.invalidateCache(ctx, callerID)

	s.deps.Logger.Info("batch added",
		"batch_id", batch.ID(),
		"ingredient_id", batch.IngredientID(),
		"quantity", batch.Quantity(),
		"unit", batch.Unit())

	return batch, nil
}

// GetBatch returns a batch owned by the caller. Another owner's batch is
// reported as not found rather than forbidden so existence never leaks.
func (s *pantryService) GetBatch(ctx context.Context, callerID string, batchID uuid.UUID) (*models.Batch, error) {
	batch, err := s.deps.Repositories.Batch.GetBatch(ctx, batchID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get batch")
	}
	if batch == nil || batch.OwnerID() != callerID {
		return nil, apperrors.NewNotFoundError("batch", batchID.String())
	}
	return batch, nil
}

// ListBatches returns the caller's batches, served from cache when possible.
func (s *pantryService) ListBatches(ctx context.Context, callerID string) ([]*models.BatchResponse, error) {
	cacheKey := pantryCacheKey(callerID)

	var cached []*models.BatchResponse
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Get(ctx, cacheKey, &cached); err == nil {
			if s.deps.Metrics != nil {
				s.deps.Metrics.RecordCacheHit("pantry_list")
			}
			return cached, nil
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordCacheMiss("pantry_list")
		}
	}

	batches, err := s.deps.Repositories.Batch.ListBatches(ctx, callerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list batches")
	}

	out := make([]*models.BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, models.NewBatchResponse(b))
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, cacheKey, out, pantryCacheTTL); err != nil {
			s.deps.Logger.Warn("failed to cache pantry listing", "owner_id", callerID, "error", err)
		}
	}

	return out, nil
}

// ReserveBatch moves an AVAILABLE batch to RESERVED under a row lock.
func (s *pantryService) ReserveBatch(ctx context.Context, callerID string, batchID uuid.UUID) (*models.Batch, error) {
	return s.transition(ctx, callerID, batchID, func(b *models.Batch) error {
		return b.Reserve()
	})
}

// FreezeBatch relocates a batch to the freezer with an extended expiry.
func (s *pantryService) FreezeBatch(ctx context.Context, callerID string, batchID uuid.UUID, newExpiry time.Time) (*models.Batch, error) {
	return s.transition(ctx, callerID, batchID, func(b *models.Batch) error {
		return b.Freeze(newExpiry)
	})
}

// QuarantineBatch moves a batch to QUARANTINE (manual override, any state).
func (s *pantryService) QuarantineBatch(ctx context.Context, callerID string, batchID uuid.UUID) (*models.Batch, error) {
	return s.transition(ctx, callerID, batchID, func(b *models.Batch) error {
		return b.Quarantine()
	})
}

// DiscardBatch disposes of a batch.
func (s *pantryService) DiscardBatch(ctx context.Context, callerID string, batchID uuid.UUID) (*models.Batch, error) {
	return s.transition(ctx, callerID, batchID, func(b *models.Batch) error {
		return b.Discard()
	})
}

// transition runs a single-batch state transition under its own short
// transaction and row lock. Multi-batch ordering discipline is only needed
// by the consumption orchestrator.
func (s *pantryService) transition(ctx context.Context, callerID string, batchID uuid.UUID, apply func(*models.Batch) error) (*models.Batch, error) {
	tx, err := s.deps.Repositories.Batch.BeginTransaction(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}

	committed := false
	defer func() {
		if !committed {
			_ = s.deps.Repositories.Batch.RollbackTransaction(tx)
		}
	}()

	batch, err := s.deps.Repositories.Batch.LockBatch(ctx, tx, batchID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock batch")
	}
	if batch == nil || batch.OwnerID() != callerID {
		return nil, apperrors.NewNotFoundError("batch", batchID.String())
	}

	if err := apply(batch); err != nil {
		return nil, err
	}

	if err := s.deps.Repositories.Batch.SaveBatchInTx(ctx, tx, batch); err != nil {
		return nil, errors.Wrap(err, "failed to save batch")
	}

	if err := s.deps.Repositories.Batch.CommitTransaction(tx); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}
	committed = true

	s.invalidateCache(ctx, callerID)

	return batch, nil
}

// FindFEFO returns consumable batches for the ingredient in
// First-Expired-First-Out order.
func (s *pantryService) FindFEFO(ctx context.Context, callerID, ingredientID string) ([]*models.Batch, error) {
	if err := models.ValidateIngredientID(ingredientID); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	batches, err := s.deps.Repositories.Batch.FindFEFO(ctx, callerID, ingredientID, time.Now().UTC())
	if err != nil {
		return nil, errors.Wrap(err, "failed to find batches")
	}
	return batches, nil
}

// FindExpiringSoon returns batches expiring within the window, most urgent
// first.
func (s *pantryService) FindExpiringSoon(ctx context.Context, callerID string, withinDays int, storage models.StorageLocation) ([]*models.BatchResponse, error) {
	if err := models.ValidateExpiringQuery(withinDays, string(storage)); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	now := time.Now().UTC()
	batches, err := s.deps.Repositories.Batch.FindExpiringSoon(ctx, callerID, withinDays, storage, now)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find expiring batches")
	}

	out := make([]*models.BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, models.NewBatchResponseWithUrgency(b, now))
	}
	return out, nil
}

func (s *pantryService) invalidateCache(ctx context.Context, ownerID string) {
	cacheManager := NewCacheManager(s.deps)
	if err := cacheManager.InvalidateOwnerCache(ctx, ownerID); err != nil {
		s.deps.Logger.Warn("failed to invalidate pantry cache", "owner_id", ownerID, "error", err)
	}
}
