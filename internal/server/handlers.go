package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/story-api/internal/auth"
	"github.com/maauso/story-api/internal/story"
)

// DefaultMaxUploadBytes caps the multipart body when no limit is configured.
const DefaultMaxUploadBytes int64 = 100 << 20

// multipartMemory is how much of an upload is kept in memory before
// spilling to disk.
const multipartMemory = 8 << 20

// uploadFields are the accepted form field names for the media file.
var uploadFields = []string{"file", "media"}

// StoryService is the story use case layer the handlers drive.
type StoryService interface {
	Ingest(ctx context.Context, in story.UploadInput) (*story.Story, error)
	ListActive(ctx context.Context) ([]*story.Story, error)
	Delete(ctx context.Context, userID, id string) error
	FileURL(ctx context.Context, key string) (string, error)
	IsExpired(st *story.Story) bool
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	stories        StoryService
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes limits the size of upload request bodies.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(stories StoryService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		stories:        stories,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ListStories handles GET /api/stories requests.
func (h *Handlers) ListStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.stories.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list stories", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list stories", "STORY_LIST_FAILED")
		return
	}

	resp := StoryListResponse{Stories: make([]StoryResponse, 0, len(stories))}
	for _, st := range stories {
		resp.Stories = append(resp.Stories, h.toResponse(r.Context(), st))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UploadStory handles POST /api/stories multipart uploads.
func (h *Handlers) UploadStory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", "UNAUTHORIZED")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit", "UPLOAD_TOO_LARGE")
			return
		}
		h.logger.Warn("failed to parse upload", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := formFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "a file field named \"file\" or \"media\" is required", "MISSING_FILE")
		return
	}
	defer func() { _ = file.Close() }()

	// classification trusts the declared type; the sniffed one is only logged
	contentType := header.Header.Get("Content-Type")
	h.logSniffedType(file, header.Filename, contentType)

	req := UploadStoryRequest{
		FileName:    header.Filename,
		Size:        header.Size,
		ContentType: contentType,
	}
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("upload validation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	st, err := h.stories.Ingest(r.Context(), story.UploadInput{
		UserID:      userID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Body:        file,
	})
	if err != nil {
		h.logger.Error("failed to ingest story",
			slog.String("user_id", userID),
			slog.String("file_name", req.FileName),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to save story", "INGESTION_FAILED")
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(r.Context(), st))
}

// DeleteStory handles DELETE /api/stories/{id} requests.
func (h *Handlers) DeleteStory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", "UNAUTHORIZED")
		return
	}

	storyID := chi.URLParam(r, "id")
	if storyID == "" {
		writeError(w, http.StatusBadRequest, "story ID is required", "MISSING_STORY_ID")
		return
	}

	if err := h.stories.Delete(r.Context(), userID, storyID); err != nil {
		if errors.Is(err, story.ErrStoryNotFound) {
			writeError(w, http.StatusNotFound, "story not found", "STORY_NOT_FOUND")
			return
		}
		h.logger.Error("failed to delete story",
			slog.String("story_id", storyID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete story", "STORY_DELETE_FAILED")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) toResponse(ctx context.Context, st *story.Story) StoryResponse {
	fileURL, err := h.stories.FileURL(ctx, st.FileKey)
	if err != nil {
		// Don't fail the request, just log and omit the URL
		h.logger.Warn("failed to build file URL",
			slog.String("story_id", st.ID),
			slog.String("error", err.Error()),
		)
	}

	return StoryResponse{
		ID:        st.ID,
		User:      UserRef{ID: st.UserID},
		File:      fileURL,
		MediaType: string(st.MediaType),
		Duration:  st.Duration,
		IsTrimmed: st.Trimmed,
		CreatedAt: st.CreatedAt,
		IsExpired: h.stories.IsExpired(st),
	}
}

// logSniffedType records the detected MIME type of an upload next to the
// declared one. The file is rewound afterwards.
func (h *Handlers) logSniffedType(file multipart.File, fileName, declared string) {
	mt, err := mimetype.DetectReader(file)
	if _, serr := file.Seek(0, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		h.logger.Warn("failed to sniff upload type",
			slog.String("file_name", fileName),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Debug("upload received",
		slog.String("file_name", fileName),
		slog.String("declared_type", declared),
		slog.String("sniffed_type", mt.String()),
	)
}

// formFile returns the first file found under the accepted field names.
func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	var lastErr error
	for _, field := range uploadFields {
		file, header, err := r.FormFile(field)
		if err == nil {
			return file, header, nil
		}
		lastErr = err
	}
	return nil, nil, lastErr
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
