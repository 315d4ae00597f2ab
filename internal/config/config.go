// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrJWTSecretRequired is returned when JWT_SECRET is not set.
	ErrJWTSecretRequired = errors.New("config: JWT_SECRET is required")
	// ErrInvalidConfig wraps field validation failures.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	MaxUploadMB    int      `env:"MAX_UPLOAD_MB, default=100" json:"max_upload_mb" validate:"min=1"`

	// Database settings
	DBDriver     string `env:"DB_DRIVER, default=sqlite" json:"db_driver" validate:"oneof=sqlite pgx"`
	DBConnection string `env:"DB_CONNECTION, default=./data/stories.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_time_format=sqlite" json:"-"` // May carry credentials

	// Storage settings
	TempDir  string `env:"TEMP_DIR, default=/tmp/stories" json:"temp_dir" validate:"required"`
	MediaDir string `env:"MEDIA_DIR, default=./data/media" json:"media_dir" validate:"required"`

	// Media tool settings
	FFmpegPath  string        `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string        `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	ToolTimeout time.Duration `env:"TOOL_TIMEOUT, default=2m" json:"tool_timeout" validate:"gt=0"`

	// Story settings
	MaxVideoSec   int           `env:"STORY_MAX_VIDEO_SEC, default=60" json:"story_max_video_sec" validate:"min=1"`
	StoryTTL      time.Duration `env:"STORY_TTL, default=24h" json:"story_ttl" validate:"gt=0"`
	SweepSchedule string        `env:"SWEEP_SCHEDULE, default=@every 15m" json:"sweep_schedule"`

	// Auth settings
	JWTSecret string `env:"JWT_SECRET, required" json:"-"` // Masked in JSON

	// Optional S3 settings
	S3Bucket           string        `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string        `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string        `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3PresignTTL       time.Duration `env:"S3_PRESIGN_TTL, default=1h" json:"s3_presign_ttl"`
	AWSAccessKeyID     string        `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"` // "debug", "info", "warn", "error"
	SentryDSN string `env:"SENTRY_DSN" json:"-"`
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Load reads configuration from a .env file (when present) and environment
// variables. It returns an error if required variables are not set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "JWT_SECRET") {
			return nil, ErrJWTSecretRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and in range.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrJWTSecretRequired
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs. With a Sentry DSN
// configured, error records are also sent to Sentry.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	if c.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{Dsn: c.SentryDSN})
		if err == nil {
			handler = slogmulti.Fanout(
				handler,
				slogsentry.Option{Level: slog.LevelError}.NewSentryHandler(),
			)
		} else {
			slog.New(handler).Warn("sentry disabled", slog.String("error", err.Error()))
		}
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, DBDriver: %s, TempDir: %s, MediaDir: %s, MaxVideoSec: %d, StoryTTL: %s, SweepSchedule: %q, S3Bucket: %s, S3Region: %s, JWTSecret: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.DBDriver,
		c.TempDir,
		c.MediaDir,
		c.MaxVideoSec,
		c.StoryTTL,
		c.SweepSchedule,
		c.S3Bucket,
		c.S3Region,
		mask(c.JWTSecret),
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
