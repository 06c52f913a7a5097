package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// sweepService implements SweepService
type sweepService struct {
	deps *ServiceDependencies
}

// NewSweepService creates a new sweep service
func NewSweepService(deps *ServiceDependencies) SweepService {
	return &sweepService{deps: deps}
}

// RunSweep applies the time-based state transitions across all batches:
// past-date use_by batches expire, past-date best_before batches are
// quarantined, and available batches within the expiring-soon window are
// flagged. Re-running with the same now produces no further changes.
func (s *sweepService) RunSweep(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()

	mutated, err := s.deps.Repositories.Batch.SweepExpirations(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "failed to sweep expirations")
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordSweep(mutated, time.Since(start))
	}

	if mutated > 0 {
		s.deps.Logger.Info("expiry sweep applied", "mutated", mutated)

		// Listings are owner-scoped; a sweep can touch any owner, so the
		// whole pantry cache namespace is dropped.
		if s.deps.Cache != nil {
			if err := s.deps.Cache.DeletePattern(ctx, pantryCachePattern); err != nil {
				s.deps.Logger.Warn("failed to invalidate pantry caches after sweep", "error", err)
			}
		}
	}

	return mutated, nil
}
