package job

import (
	"context"
	"errors"
)

// ErrGenerationNotFound is returned when a generation cannot be found by ID.
var ErrGenerationNotFound = errors.New("generation not found")

// Repository defines the interface for generation persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Save persists a generation to the storage.
	// If the generation already exists, it should be updated.
	Save(ctx context.Context, gen *Generation) error

	// FindByID retrieves a generation by its unique identifier.
	// Returns ErrGenerationNotFound if the generation does not exist.
	FindByID(ctx context.Context, id string) (*Generation, error)

	// List returns all generations.
	List(ctx context.Context) ([]*Generation, error)

	// Delete removes a generation from storage.
	// Returns ErrGenerationNotFound if the generation does not exist.
	Delete(ctx context.Context, id string) error
}
