package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	apperrors "github.com/forkful/pantry-service/internal/errors"
	"github.com/forkful/pantry-service/internal/models"
)

// idempotencyService implements IdempotencyService
type idempotencyService struct {
	deps *ServiceDependencies
}

// NewIdempotencyService creates a new idempotency service
func NewIdempotencyService(deps *ServiceDependencies) IdempotencyService {
	return &idempotencyService{deps: deps}
}

// Check returns the cached response when a live record exists for the tuple
// and its body hash matches. A live record with a different hash is a key
// reuse with a new payload: rejected as Conflict, never re-executed and
// never replayed.
func (s *idempotencyService) Check(ctx context.Context, key, callerID, endpoint, bodyHash string) (*CachedResponse, error) {
	record, err := s.deps.Repositories.Idempotency.Get(ctx, key, callerID, endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up idempotency record")
	}
	if record == nil {
		s.record("miss")
		return nil, nil
	}

	if record.BodyHash != bodyHash {
		s.record("conflict")
		return nil, apperrors.NewConflictError(
			"idempotency key already used with a different request body")
	}

	s.record("hit")
	return &CachedResponse{
		Status: record.ResponseStatus,
		Body:   record.ResponseBody,
	}, nil
}

// Store replaces any record for the tuple with the new response, so storing
// the same outcome twice keeps exactly one live record.
func (s *idempotencyService) Store(ctx context.Context, key, callerID, endpoint, bodyHash string, status int, body []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = models.DefaultIdempotencyTTL
	}

	now := time.Now().UTC()
	record := &models.IdempotencyRecord{
		Key:            key,
		CallerID:       callerID,
		Endpoint:       endpoint,
		BodyHash:       bodyHash,
		ResponseStatus: status,
		ResponseBody:   body,
		ExpiresAt:      now.Add(ttl),
		CreatedAt:      now,
	}

	if err := s.deps.Repositories.Idempotency.Put(ctx, record); err != nil {
		return errors.Wrap(err, "failed to store idempotency record")
	}
	return nil
}

// CleanupExpired deletes all records past their TTL.
func (s *idempotencyService) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	count, err := s.deps.Repositories.Idempotency.DeleteExpired(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete expired idempotency records")
	}
	if count > 0 {
		s.deps.Logger.Info("expired idempotency records removed", "count", count)
	}
	return count, nil
}

func (s *idempotencyService) record(outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordIdempotency(outcome)
	}
}
