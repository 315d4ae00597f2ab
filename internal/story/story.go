// Package story provides the Story aggregate, the ingestion pipeline that
// turns an upload into a persisted story, and the expiry sweeper that keeps
// listings limited to live stories.
package story

import (
	"time"

	"github.com/maauso/story-api/internal/media"
)

// MediaType is the stored classification of a story's file.
type MediaType string

const (
	// MediaImage marks a still image story.
	MediaImage MediaType = "image"
	// MediaVideo marks a video story.
	MediaVideo MediaType = "video"
)

// mediaTypeFor maps a classifier result onto the stored type.
// Anything that is not a recognized video is stored as an image.
func mediaTypeFor(kind media.Kind) MediaType {
	if kind == media.KindVideo {
		return MediaVideo
	}
	return MediaImage
}

// Story is a short-lived media post owned by a user.
type Story struct {
	// ID is the unique identifier for this story.
	ID string `json:"id"`
	// UserID is the owner.
	UserID string `json:"user_id"`
	// FileKey is the storage key of the persisted media file.
	FileKey string `json:"file_key"`
	// MediaType is set once at creation and never reclassified.
	MediaType MediaType `json:"media_type"`
	// Duration is the platform maximum video length in seconds.
	Duration int `json:"duration"`
	// Trimmed is true only when a validated shortened file replaced the upload.
	Trimmed bool `json:"is_trimmed"`
	// CreatedAt is when the story was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// ExpiresAt returns the instant the story stops being listed.
func (s *Story) ExpiresAt(ttl time.Duration) time.Time {
	return s.CreatedAt.Add(ttl)
}

// IsExpired reports whether the story is older than ttl at now.
func (s *Story) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.After(s.ExpiresAt(ttl))
}

// Clone returns a copy safe to hand out of a repository.
func (s *Story) Clone() *Story {
	c := *s
	return &c
}
