package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
)

// DefaultProposalKeyPrefix namespaces proposal batches in a shared Redis database.
const DefaultProposalKeyPrefix = "jury:proposals:"

// ProposalCacheRepository mirrors generated proposal batches in Redis so any API instance
// can serve or confirm them. A nil client behaves as an always-empty cache.
type ProposalCacheRepository struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewProposalCacheRepository constructs the repository. An empty prefix uses DefaultProposalKeyPrefix.
func NewProposalCacheRepository(client *redis.Client, prefix string, logger *zap.Logger) *ProposalCacheRepository {
	if prefix == "" {
		prefix = DefaultProposalKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProposalCacheRepository{client: client, prefix: prefix, logger: logger}
}

func (r *ProposalCacheRepository) key(batchID string) string {
	return r.prefix + batchID
}

// Get loads the batch stored under batchID into dest.
func (r *ProposalCacheRepository) Get(ctx context.Context, batchID string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, r.key(batchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get batch %s: %w", batchID, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode batch %s: %w", batchID, err)
	}
	return nil
}

// Set stores a batch. Batches always expire, so a non-positive ttl is rejected.
func (r *ProposalCacheRepository) Set(ctx context.Context, batchID string, batch interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	if ttl <= 0 {
		return fmt.Errorf("batch %s: ttl must be positive", batchID)
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", batchID, err)
	}
	if err := r.client.Set(ctx, r.key(batchID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set batch %s: %w", batchID, err)
	}
	r.logger.Debug("proposal batch cached", zap.String("batch_id", batchID), zap.Duration("ttl", ttl))
	return nil
}

// Delete drops a batch. Missing batches are not an error.
func (r *ProposalCacheRepository) Delete(ctx context.Context, batchID string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, r.key(batchID)).Err(); err != nil {
		return fmt.Errorf("redis delete batch %s: %w", batchID, err)
	}
	return nil
}

// PingContext reports whether Redis is reachable; a disabled cache is always healthy.
func (r *ProposalCacheRepository) PingContext(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}
