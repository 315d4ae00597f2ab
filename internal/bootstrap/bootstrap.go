// Package bootstrap provides dependency initialization for the story API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/maauso/story-api/internal/auth"
	"github.com/maauso/story-api/internal/config"
	"github.com/maauso/story-api/internal/db"
	"github.com/maauso/story-api/internal/media"
	"github.com/maauso/story-api/internal/realtime"
	"github.com/maauso/story-api/internal/storage"
	"github.com/maauso/story-api/internal/story"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Stories  *story.Service
	Hub      *realtime.Hub
	Verifier *auth.Verifier
	// MediaDir is set when media is kept on local disk and must be served.
	MediaDir string

	db *sqlx.DB
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize database and schema
	conn, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(conn.DB, cfg.DBDriver); err != nil {
		_ = db.Close(conn)
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// Initialize storage
	store, mediaDir, err := initStorage(cfg, logger)
	if err != nil {
		_ = db.Close(conn)
		return nil, err
	}

	// Initialize media processor
	processor := media.NewFFmpegProcessor(media.Config{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Timeout:     cfg.ToolTimeout,
	}, store, logger)

	hub := realtime.NewHub(cfg.AllowedOrigins, logger)

	svc := story.NewService(
		story.NewSQLRepository(conn),
		store,
		processor,
		logger,
		story.WithSettings(story.Settings{
			MaxVideoSeconds: cfg.MaxVideoSec,
			TTL:             cfg.StoryTTL,
		}),
		story.WithNotifier(hub),
	)

	return &Dependencies{
		Stories:  svc,
		Hub:      hub,
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		MediaDir: mediaDir,
		db:       conn,
	}, nil
}

// Close releases websocket subscribers and the database pool.
func (d *Dependencies) Close() error {
	d.Hub.Close()
	return db.Close(d.db)
}

// OpenDatabase connects to the configured database without migrating it.
func OpenDatabase(cfg *config.Config) (*sqlx.DB, error) {
	conn, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return conn, nil
}

// initStorage creates the appropriate storage backend based on configuration.
// The returned directory is empty for S3, which serves its own objects.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, string, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			PresignTTL:      cfg.S3PresignTTL,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, "", fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, "", nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir, cfg.MediaDir, storage.DefaultBaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
		slog.String("media_dir", localStore.MediaDir()),
	)
	return localStore, localStore.MediaDir(), nil
}
