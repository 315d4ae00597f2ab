// Package server provides the HTTP server for the story API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// UploadStoryRequest captures the validated parts of a multipart upload.
type UploadStoryRequest struct {
	// FileName is the client supplied file name.
	FileName string `validate:"required,max=255"`
	// Size is the declared part size in bytes.
	Size int64 `validate:"gt=0"`
	// ContentType is the declared or sniffed MIME type.
	ContentType string `validate:"omitempty,max=255"`
}

// UserRef is the nested owner reference in a story payload.
type UserRef struct {
	ID string `json:"id"`
}

// StoryResponse is the JSON representation of a story.
type StoryResponse struct {
	// ID is the unique identifier for the story.
	ID string `json:"id"`
	// User is the owner.
	User UserRef `json:"user"`
	// File is a URL the media can be fetched from.
	File string `json:"file"`
	// MediaType is "image" or "video".
	MediaType string `json:"media_type"`
	// Duration is the platform maximum video length in seconds.
	Duration int `json:"duration"`
	// IsTrimmed reports whether the stored video was shortened.
	IsTrimmed bool `json:"is_trimmed"`
	// CreatedAt is when the story was published.
	CreatedAt time.Time `json:"created_at"`
	// IsExpired is true once the story is older than its lifetime.
	IsExpired bool `json:"is_expired"`
}

// StoryListResponse wraps a listing.
type StoryListResponse struct {
	Stories []StoryResponse `json:"stories"`
}

// HealthResponse is the HTTP response for health checks.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is a human-readable error message.
	Error string `json:"error"`
	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}
