package story

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; swap for SQLRepository in production.
type MemoryRepository struct {
	mu      sync.RWMutex
	stories map[string]*Story
}

// NewMemoryRepository creates a new in-memory story repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		stories: make(map[string]*Story),
	}
}

// Create stores a clone of s to avoid external mutations.
func (r *MemoryRepository) Create(_ context.Context, s *Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stories[s.ID] = s.Clone()
	return nil
}

// FindByID retrieves a story by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stories[id]
	if !ok {
		return nil, ErrStoryNotFound
	}
	return s.Clone(), nil
}

// ListCreatedSince returns stories created at or after cutoff, newest first.
func (r *MemoryRepository) ListCreatedSince(_ context.Context, cutoff time.Time) ([]*Story, error) {
	return r.filter(func(s *Story) bool { return !s.CreatedAt.Before(cutoff) }), nil
}

// ListCreatedBefore returns stories created strictly before cutoff, newest first.
func (r *MemoryRepository) ListCreatedBefore(_ context.Context, cutoff time.Time) ([]*Story, error) {
	return r.filter(func(s *Story) bool { return s.CreatedAt.Before(cutoff) }), nil
}

// Delete removes a story from storage.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stories[id]; !ok {
		return ErrStoryNotFound
	}
	delete(r.stories, id)
	return nil
}

func (r *MemoryRepository) filter(keep func(*Story) bool) []*Story {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Story, 0, len(r.stories))
	for _, s := range r.stories {
		if keep(s) {
			result = append(result, s.Clone())
		}
	}
	slices.SortFunc(result, newestFirst)
	return result
}

// newestFirst orders by creation time descending, breaking ties by ID so
// listings are stable.
func newestFirst(a, b *Story) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
