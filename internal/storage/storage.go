// Package storage provides scratch and persistent file storage for story media.
// It defines the Storage interface (port) and implementations for local disk
// and S3.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidKey is returned when an object key would escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// Storage defines scratch files for tool processing plus the persistent
// object store that backs story records.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// TempDir returns the scratch directory.
	TempDir() string

	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data io.Reader) error

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object under key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a URL clients can fetch the object from.
	URL(ctx context.Context, key string) (string, error)
}
