package story

import (
	"context"
	"errors"
	"time"
)

// ErrStoryNotFound is returned when a story cannot be found by ID.
var ErrStoryNotFound = errors.New("story not found")

// Repository defines the interface for story persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Create inserts a new story.
	Create(ctx context.Context, s *Story) error

	// FindByID retrieves a story by its unique identifier.
	// Returns ErrStoryNotFound if the story does not exist.
	FindByID(ctx context.Context, id string) (*Story, error)

	// ListCreatedSince returns stories created at or after cutoff, newest first.
	ListCreatedSince(ctx context.Context, cutoff time.Time) ([]*Story, error)

	// ListCreatedBefore returns stories created strictly before cutoff.
	ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Story, error)

	// Delete removes a story.
	// Returns ErrStoryNotFound if the story does not exist.
	Delete(ctx context.Context, id string) error
}
