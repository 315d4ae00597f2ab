// Package media provides upload classification and the ffprobe/ffmpeg backed
// validation, duration and trimming steps of story ingestion.
package media

import (
	"context"
	"io"
)

// Processor defines the media operations used while ingesting a story.
// None of the methods return errors: tool failures degrade to a safe result.
type Processor interface {
	// Validate reports whether the tool can parse the container metadata of src.
	// Any probe failure, including a missing binary, yields false.
	Validate(ctx context.Context, src io.Reader) bool

	// Duration returns the container duration of src in seconds.
	// Any probe or parse failure yields 0.
	Duration(ctx context.Context, src io.Reader) float64

	// Trim cuts src to at most maxSeconds. When no validated replacement can
	// be produced the result wraps src itself and Trimmed is false.
	// The caller must Close the result.
	Trim(ctx context.Context, src io.ReadSeeker, maxSeconds float64) TrimResult
}

// TempStore is the scratch area used to hand uploads to external tools.
// storage.LocalStorage satisfies it.
type TempStore interface {
	// SaveTemp writes data to a new temp file and returns its path.
	SaveTemp(ctx context.Context, name string, data io.Reader) (string, error)
	// CleanupTemp removes the given temp files, ignoring ones already gone.
	CleanupTemp(ctx context.Context, paths []string) error
	// TempDir returns the scratch directory.
	TempDir() string
}
