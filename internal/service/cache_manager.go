package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const (
	pantryCachePrefix  = "pantry:"
	pantryCachePattern = "pantry:*"
	pantryCacheTTL     = 5 * time.Minute
)

// pantryCacheKey builds the cache key for one owner's pantry listing
func pantryCacheKey(ownerID string) string {
	return pantryCachePrefix + ownerID
}

// cacheManager implements CacheManager
type cacheManager struct {
	deps *ServiceDependencies
}

// NewCacheManager creates a new cache manager
func NewCacheManager(deps *ServiceDependencies) CacheManager {
	return &cacheManager{deps: deps}
}

// InvalidateOwnerCache drops the cached pantry listing for one owner. Called
// only after a successful commit so readers never cache rolled-back state.
func (m *cacheManager) InvalidateOwnerCache(ctx context.Context, ownerID string) error {
	if m.deps.Cache == nil {
		return nil
	}
	if err := m.deps.Cache.Delete(ctx, pantryCacheKey(ownerID)); err != nil {
		return errors.Wrapf(err, "failed to invalidate cache for owner %s", ownerID)
	}
	return nil
}
