package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
)

// ProposalCacheRepository persists serialized proposal batches keyed by batch ID.
type ProposalCacheRepository interface {
	Get(ctx context.Context, batchID string, dest interface{}) error
	Set(ctx context.Context, batchID string, batch interface{}, ttl time.Duration) error
	Delete(ctx context.Context, batchID string) error
}

// ProposalCache is the shared second tier of the proposal store. It records hit ratios and
// latencies, and degrades to a no-op when disabled.
type ProposalCache struct {
	repo       ProposalCacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewProposalCache constructs the cache. defaultTTL applies when callers pass none.
func NewProposalCache(repo ProposalCacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *ProposalCache {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProposalCache{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled reports whether batches are mirrored.
func (c *ProposalCache) Enabled() bool {
	return c != nil && c.enabled && c.repo != nil
}

// Get loads a batch into dest and reports whether it was found.
func (c *ProposalCache) Get(ctx context.Context, batchID string, dest interface{}) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := c.repo.Get(ctx, batchID, dest)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.RecordCacheOperation(false, elapsed)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		c.logger.Warn("proposal cache read failed", zap.String("batch_id", batchID), zap.Error(err))
		return false, err
	}
	c.metrics.RecordCacheOperation(true, elapsed)
	return true, nil
}

// Set mirrors a batch for ttl, or the default TTL when ttl is not positive.
func (c *ProposalCache) Set(ctx context.Context, batchID string, batch interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	start := time.Now()
	err := c.repo.Set(ctx, batchID, batch, ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("proposal cache write failed", zap.String("batch_id", batchID), zap.Error(err))
	}
	return err
}

// Invalidate removes a confirmed or expired batch.
func (c *ProposalCache) Invalidate(ctx context.Context, batchID string) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.repo.Delete(ctx, batchID); err != nil {
		c.logger.Warn("proposal cache invalidate failed", zap.String("batch_id", batchID), zap.Error(err))
		return err
	}
	return nil
}
