package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// DefaultBaseURL is the path prefix local media is served under.
const DefaultBaseURL = "/media"

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// LocalStorage implements the Storage interface using local disk.
// Scratch files live in tempDir and persisted objects under mediaDir.
type LocalStorage struct {
	tempDir  string
	mediaDir string
	baseURL  string
}

// NewLocalStorage creates a new LocalStorage instance.
// If tempDir is empty, a "stories" directory under os.TempDir() is used.
// If mediaDir is empty, objects are kept in a "media" directory next to the
// scratch files. Both directories are created if they don't exist.
func NewLocalStorage(tempDir, mediaDir, baseURL string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "stories")
	}
	if mediaDir == "" {
		mediaDir = filepath.Join(tempDir, "media")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	if err := os.MkdirAll(mediaDir, 0750); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir, mediaDir: mediaDir, baseURL: baseURL}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// MediaDir returns the directory persisted objects are written to.
func (s *LocalStorage) MediaDir() string {
	return s.mediaDir
}

// SaveTemp saves data to a temporary file and returns the file path.
// The name is used as a base for the filename with a unique suffix.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.tempDir, name+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// CleanupTemp removes the specified temporary files.
// Files that are already gone are skipped. It keeps going after a failure
// and returns the first error encountered.
func (s *LocalStorage) CleanupTemp(_ context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Put writes data under key. The file is replaced atomically so readers
// never observe a partial object.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader) error {
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	if err := atomic.WriteFile(path, data); err != nil {
		return fmt.Errorf("write object %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a file is stored under key.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.objectPath(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat object %s: %w", key, err)
	}
}

// Delete removes the file under key. A missing file is not an error.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// URL returns the path the object is served under by the media file server.
func (s *LocalStorage) URL(_ context.Context, key string) (string, error) {
	if _, err := s.objectPath(key); err != nil {
		return "", err
	}
	u, err := url.JoinPath(s.baseURL, key)
	if err != nil {
		return "", fmt.Errorf("build media URL: %w", err)
	}
	return u, nil
}

// objectPath maps a slash separated key onto the media directory.
func (s *LocalStorage) objectPath(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.mediaDir, rel), nil
}
