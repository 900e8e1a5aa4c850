package hivemind

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
	"github.com/XiaoConstantine/evoagent-go/pkg/logging"
)

// MemoryStore keeps knowledge in process memory. It is the default store for
// single-run engines and tests.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	items    []KnowledgeItem
	now      func() time.Time
}

// DefaultCapacity bounds a store when no explicit capacity is given.
const DefaultCapacity = 1024

// NewMemoryStore returns an empty store holding at most capacity items.
// Non-positive capacities fall back to DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{capacity: capacity, now: time.Now}
}

// StoreIfNovel implements Store. Similarity comparison and the insert (or
// ReferenceCount bump) happen under one lock so concurrent near-duplicates
// cannot both land.
func (s *MemoryStore) StoreIfNovel(ctx context.Context, item KnowledgeItem, threshold float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := 1 - threshold
	closest := -1
	closestSim := -1.0
	for i := range s.items {
		sim := Similarity(item, s.items[i])
		if sim > closestSim {
			closestSim = sim
			closest = i
		}
	}

	if closest >= 0 && closestSim >= limit {
		s.items[closest].ReferenceCount++
		logging.GetLogger().Debug(ctx, "knowledge duplicate folded into %s (similarity %.3f, refs %d)",
			s.items[closest].ID, closestSim, s.items[closest].ReferenceCount)
		return false, nil
	}

	s.items = append(s.items, sealed(item, s.now()))
	if len(s.items) > s.capacity {
		s.evict(ctx)
	}
	return true, nil
}

// GetRelevantKnowledge implements Store.
func (s *MemoryStore) GetRelevantKnowledge(ctx context.Context, chrom *genome.Chromosome, maxResults int) ([]KnowledgeItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rankByRelevance(s.items, queryFor(chrom), maxResults), nil
}

// Len implements Store.
func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

// Close implements Store. The in-memory store has nothing to release.
func (s *MemoryStore) Close() error { return nil }

// Items returns a snapshot of the stored knowledge.
func (s *MemoryStore) Items() []KnowledgeItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]KnowledgeItem, len(s.items))
	for i, it := range s.items {
		out[i] = it
		out[i].Tags = append([]string(nil), it.Tags...)
	}
	return out
}

// evict drops the item with the lowest ReferenceCount, oldest first on ties.
// Must be called with the lock held.
func (s *MemoryStore) evict(ctx context.Context) {
	victim := 0
	for i := 1; i < len(s.items); i++ {
		cand, cur := s.items[i], s.items[victim]
		if cand.ReferenceCount < cur.ReferenceCount ||
			(cand.ReferenceCount == cur.ReferenceCount && cand.CreatedAt.Before(cur.CreatedAt)) {
			victim = i
		}
	}
	logging.GetLogger().Debug(ctx, "knowledge store full, evicting %s (refs %d)",
		s.items[victim].ID, s.items[victim].ReferenceCount)
	s.items = append(s.items[:victim], s.items[victim+1:]...)
}

// sealed fills the storage-owned fields of a freshly admitted item.
func sealed(item KnowledgeItem, now time.Time) KnowledgeItem {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.ReferenceCount < 1 {
		item.ReferenceCount = 1
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.Tags = append([]string(nil), item.Tags...)
	return item
}
