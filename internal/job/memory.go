package job

import (
	"context"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; swap for persistent storage in production.
type MemoryRepository struct {
	mu   sync.RWMutex
	gens map[string]*Generation
}

// NewMemoryRepository creates a new in-memory generation repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		gens: make(map[string]*Generation),
	}
}

// Save persists a generation to the in-memory storage.
// Stores a clone to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, gen *Generation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gens[gen.ID] = gen.Clone()
	return nil
}

// FindByID retrieves a generation by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Generation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gen, ok := r.gens[id]
	if !ok {
		return nil, ErrGenerationNotFound
	}
	return gen.Clone(), nil
}

// List returns all generations in the repository.
// Returns clones to prevent external mutations.
func (r *MemoryRepository) List(_ context.Context) ([]*Generation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Generation, 0, len(r.gens))
	for _, gen := range r.gens {
		result = append(result, gen.Clone())
	}
	return result, nil
}

// Delete removes a generation from storage.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.gens[id]; !ok {
		return ErrGenerationNotFound
	}
	delete(r.gens, id)
	return nil
}
