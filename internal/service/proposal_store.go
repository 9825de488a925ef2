package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

type proposalCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// proposalStore keeps generated batches until they expire. Batches are mirrored to
// the shared cache when one is configured so any API instance can confirm them.
type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]models.ProposalBatch
	cache proposalCache
	now   func() time.Time
}

func newProposalStore(ttl time.Duration, cache proposalCache) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]models.ProposalBatch),
		cache: cache,
		now:   time.Now,
	}
}

func (s *proposalStore) Save(ctx context.Context, batch models.ProposalBatch) {
	s.mu.Lock()
	s.items[batch.ID] = batch
	s.mu.Unlock()
	if s.cache != nil {
		_ = s.cache.Set(ctx, batch.ID, batch, s.ttl)
	}
}

func (s *proposalStore) Get(ctx context.Context, id string) (models.ProposalBatch, bool) {
	s.mu.RLock()
	batch, ok := s.items[id]
	s.mu.RUnlock()
	if !ok && s.cache != nil {
		var cached models.ProposalBatch
		if hit, err := s.cache.Get(ctx, id, &cached); err == nil && hit {
			batch, ok = cached, true
		}
	}
	if !ok {
		return models.ProposalBatch{}, false
	}
	if s.now().After(batch.ExpiresAt) {
		s.Delete(ctx, id)
		return models.ProposalBatch{}, false
	}
	return batch, true
}

func (s *proposalStore) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, id)
	}
}
