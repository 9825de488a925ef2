package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/defense-jury-api/internal/models"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
)

type memoryProposalRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	failGet error
}

func newMemoryProposalRepo() *memoryProposalRepo {
	return &memoryProposalRepo{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (r *memoryProposalRepo) Get(_ context.Context, batchID string, dest interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGet != nil {
		return r.failGet
	}
	raw, ok := r.entries[batchID]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryProposalRepo) Set(_ context.Context, batchID string, batch interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[batchID] = raw
	r.ttls[batchID] = ttl
	return nil
}

func (r *memoryProposalRepo) Delete(_ context.Context, batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, batchID)
	return nil
}

func TestProposalStoreSharesBatchesThroughCache(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryProposalRepo()
	metrics := NewMetricsService()
	cache := NewProposalCache(repo, metrics, 0, nil, true)

	generator := newProposalStore(time.Hour, cache)
	confirmer := newProposalStore(time.Hour, cache)

	batch := models.ProposalBatch{
		ID:        "batch-1",
		SessionID: "sess-1",
		Dates:     []string{"2024-06-10"},
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	generator.Save(ctx, batch)
	assert.Equal(t, time.Hour, repo.ttls["batch-1"])

	got, ok := confirmer.Get(ctx, "batch-1")
	require.True(t, ok, "a second instance sees the batch")
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheHits)

	confirmer.Delete(ctx, "batch-1")
	_, ok = generator.Get(ctx, "batch-1")
	assert.True(t, ok, "the local copy survives until its own instance drops it")
	_, ok = newProposalStore(time.Hour, cache).Get(ctx, "batch-1")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheMisses)
}

func TestProposalStoreDropsExpiredCachedBatch(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryProposalRepo()
	cache := NewProposalCache(repo, nil, time.Minute, nil, true)
	require.NoError(t, cache.Set(ctx, "batch-old", models.ProposalBatch{ID: "batch-old", ExpiresAt: time.Now().Add(-time.Minute)}, 0))
	assert.Equal(t, time.Minute, repo.ttls["batch-old"])

	_, ok := newProposalStore(time.Hour, cache).Get(ctx, "batch-old")
	assert.False(t, ok)
	assert.NotContains(t, repo.entries, "batch-old")
}

func TestProposalCacheDisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryProposalRepo()
	cache := NewProposalCache(repo, nil, time.Minute, nil, false)

	require.NoError(t, cache.Set(ctx, "batch-1", models.ProposalBatch{ID: "batch-1"}, time.Minute))
	assert.Empty(t, repo.entries)
	hit, err := cache.Get(ctx, "batch-1", &models.ProposalBatch{})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestProposalCacheSurfacesBackendErrors(t *testing.T) {
	repo := newMemoryProposalRepo()
	repo.failGet = errors.New("connection reset")
	cache := NewProposalCache(repo, nil, time.Minute, nil, true)

	hit, err := cache.Get(context.Background(), "batch-1", &models.ProposalBatch{})
	assert.False(t, hit)
	assert.Error(t, err)

	_, ok := newProposalStore(time.Hour, cache).Get(context.Background(), "batch-1")
	assert.False(t, ok, "a failing cache reads as a missing batch")
}
