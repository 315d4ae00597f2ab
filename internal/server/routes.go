package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maauso/story-api/internal/auth"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// Verifier authenticates bearer tokens on write routes.
	Verifier *auth.Verifier
	// Realtime serves the story event websocket. Optional.
	Realtime http.Handler
	// MediaDir is served under /media when set.
	MediaDir string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	))

	r.Get("/health", h.Health)

	r.Route("/api/stories", func(r chi.Router) {
		r.Get("/", h.ListStories)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(cfg.Verifier))
			r.Post("/", h.UploadStory)
			r.Delete("/{id}", h.DeleteStory)
		})
	})

	if cfg.Realtime != nil {
		r.Handle("/ws/stories", cfg.Realtime)
	}

	if cfg.MediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir))))
	}

	return r
}
