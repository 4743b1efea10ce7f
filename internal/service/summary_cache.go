package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teacher-attendance-api/pkg/cache"
	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
)

const defaultSummaryTTL = 2 * time.Minute

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// SummaryCache keeps computed summaries per owner. Keys embed the owner's
// generation; every ledger or registry write for one of the owner's teachers
// bumps it, so a summary computed before the write can never be served after
// it. A disabled or failing cache degrades to recomputation.
type SummaryCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewSummaryCache constructs a SummaryCache.
func NewSummaryCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *SummaryCache {
	if ttl <= 0 {
		ttl = defaultSummaryTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled reports whether lookups can hit.
func (c *SummaryCache) Enabled() bool {
	return c != nil && c.enabled && c.repo != nil
}

// Generation returns the owner's current cache generation. ok is false when
// the generation cannot be read, in which case the caller must bypass the cache.
func (c *SummaryCache) Generation(ctx context.Context, ownerID string) (gen int64, ok bool) {
	if !c.Enabled() {
		return 0, false
	}
	err := c.repo.Get(ctx, summaryGenerationKey(ownerID), &gen)
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, appErrors.ErrCacheMiss):
		return 0, true
	default:
		c.logger.Warn("summary cache generation read failed", zap.String("owner_id", ownerID), zap.Error(err))
		return 0, false
	}
}

// Lookup decodes the entry under key into dest and reports a hit.
func (c *SummaryCache) Lookup(ctx context.Context, key string, dest interface{}) bool {
	if !c.Enabled() {
		return false
	}
	start := time.Now()
	err := c.repo.Get(ctx, key, dest)
	c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		c.logger.Warn("summary cache read failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Store saves value under key for the configured TTL.
func (c *SummaryCache) Store(ctx context.Context, key string, value interface{}) {
	if !c.Enabled() {
		return
	}
	start := time.Now()
	err := c.repo.Set(ctx, key, value, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("summary cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// ForgetOwner bumps the owner's generation and then drops the entries of
// earlier generations. Entries that survive a failed delete are unreachable
// and expire with the TTL.
func (c *SummaryCache) ForgetOwner(ctx context.Context, ownerID string) {
	if !c.Enabled() {
		return
	}
	if _, err := c.repo.Incr(ctx, summaryGenerationKey(ownerID)); err != nil {
		c.logger.Warn("summary cache generation bump failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
	removed, err := c.repo.DeleteByPattern(ctx, summaryCachePattern(ownerID))
	if err != nil {
		c.logger.Warn("summary cache invalidation failed", zap.String("owner_id", ownerID), zap.Error(err))
		return
	}
	c.logger.Debug("summary cache invalidated", zap.String("owner_id", ownerID), zap.Int("keys", removed))
}

func summaryGenerationKey(ownerID string) string {
	return cache.Key("summary-gen", ownerID)
}

func summaryCachePattern(ownerID string) string {
	return cache.Key("summary", ownerID, "*")
}
