package task

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiringCache is a cache whose stale entries can be dropped in bulk.
type ExpiringCache interface {
	PurgeExpired(now time.Time) int
}

// NewCachePurgeRunner returns a job that drops expired entries from cache.
func NewCachePurgeRunner(cache ExpiringCache, now func() time.Time, logger *zap.Logger) RunnerFunc {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) {
		if cache == nil || ctx.Err() != nil {
			return
		}
		purged := cache.PurgeExpired(now())
		if purged > 0 {
			logger.Debug("cache_entries_purged", zap.Int("count", purged))
		}
	}
}
