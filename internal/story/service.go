package story

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/maauso/story-api/internal/media"
)

// Default lifecycle settings.
const (
	DefaultMaxVideoSeconds = 60
	DefaultTTL             = 24 * time.Hour
)

// FileStore is the persistent object store behind story files.
// storage.LocalStorage and storage.S3Storage satisfy it.
type FileStore interface {
	Put(ctx context.Context, key string, data io.Reader) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// EventType names a story lifecycle event.
type EventType string

const (
	// EventCreated is published after a story is persisted.
	EventCreated EventType = "story.created"
	// EventDeleted is published after a story is removed by its owner or the sweeper.
	EventDeleted EventType = "story.deleted"
)

// Event is a story lifecycle notification.
type Event struct {
	Type  EventType
	Story *Story
}

// Notifier receives story lifecycle events. Publish must not block for long.
type Notifier interface {
	Publish(ctx context.Context, ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, Event) {}

// Settings holds the story lifecycle limits.
type Settings struct {
	// MaxVideoSeconds is the longest video kept untrimmed, and the duration
	// recorded on every story.
	MaxVideoSeconds int
	// TTL is how long a story stays listed.
	TTL time.Duration
}

// DefaultSettings returns the platform defaults: 60 seconds, 24 hours.
func DefaultSettings() Settings {
	return Settings{
		MaxVideoSeconds: DefaultMaxVideoSeconds,
		TTL:             DefaultTTL,
	}
}

// Service ingests, lists and deletes stories.
type Service struct {
	repo      Repository
	files     FileStore
	processor media.Processor
	notifier  Notifier
	logger    *slog.Logger
	settings  Settings
	now       func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSettings overrides the lifecycle limits. Zero fields keep their defaults.
func WithSettings(settings Settings) ServiceOption {
	return func(s *Service) {
		if settings.MaxVideoSeconds > 0 {
			s.settings.MaxVideoSeconds = settings.MaxVideoSeconds
		}
		if settings.TTL > 0 {
			s.settings.TTL = settings.TTL
		}
	}
}

// WithNotifier sets the receiver of lifecycle events.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new story Service.
func NewService(repo Repository, files FileStore, processor media.Processor, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:      repo,
		files:     files,
		processor: processor,
		notifier:  nopNotifier{},
		logger:    logger,
		settings:  DefaultSettings(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the effective lifecycle limits.
func (s *Service) Settings() Settings {
	return s.settings
}

// IsExpired reports whether st is past its TTL now.
func (s *Service) IsExpired(st *Story) bool {
	return st.IsExpired(s.now(), s.settings.TTL)
}

// FileURL returns the client facing URL of a story file.
func (s *Service) FileURL(ctx context.Context, key string) (string, error) {
	return s.files.URL(ctx, key)
}

// ListActive returns live stories, newest first. As a side effect it deletes
// stories older than the TTL and stories whose file is gone.
func (s *Service) ListActive(ctx context.Context) ([]*Story, error) {
	cutoff := s.now().Add(-s.settings.TTL)

	if _, err := s.purgeBefore(ctx, cutoff); err != nil {
		return nil, err
	}

	recent, err := s.repo.ListCreatedSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}

	active := make([]*Story, 0, len(recent))
	for _, st := range recent {
		ok, err := s.files.Exists(ctx, st.FileKey)
		if err != nil {
			// existence unknown, keep it listed
			s.logger.Warn("failed to check story file",
				slog.String("story_id", st.ID),
				slog.String("file_key", st.FileKey),
				slog.String("error", err.Error()),
			)
			active = append(active, st)
			continue
		}
		if !ok {
			s.logger.Info("removing story with missing file",
				slog.String("story_id", st.ID),
				slog.String("file_key", st.FileKey),
			)
			if err := s.remove(ctx, st); err != nil {
				s.logger.Error("failed to remove orphaned story",
					slog.String("story_id", st.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		active = append(active, st)
	}

	return active, nil
}

// Purge deletes every story older than the TTL and returns how many were removed.
func (s *Service) Purge(ctx context.Context) (int, error) {
	return s.purgeBefore(ctx, s.now().Add(-s.settings.TTL))
}

// Delete removes a story owned by userID. Stories owned by someone else are
// reported as not found.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if st.UserID != userID {
		return ErrStoryNotFound
	}

	if err := s.repo.Delete(ctx, st.ID); err != nil {
		return err
	}
	s.deleteFile(ctx, st)
	s.notifier.Publish(ctx, Event{Type: EventDeleted, Story: st})

	s.logger.Info("story deleted",
		slog.String("story_id", st.ID),
		slog.String("user_id", userID),
	)
	return nil
}

func (s *Service) purgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	expired, err := s.repo.ListCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expired stories: %w", err)
	}

	removed := 0
	for _, st := range expired {
		if err := s.remove(ctx, st); err != nil {
			s.logger.Error("failed to remove expired story",
				slog.String("story_id", st.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("expired stories removed", slog.Int("count", removed))
	}
	return removed, nil
}

// remove deletes the record first and then its file. A record another
// request already removed is treated as done.
func (s *Service) remove(ctx context.Context, st *Story) error {
	if err := s.repo.Delete(ctx, st.ID); err != nil {
		if errors.Is(err, ErrStoryNotFound) {
			return nil
		}
		return err
	}
	s.deleteFile(ctx, st)
	s.notifier.Publish(ctx, Event{Type: EventDeleted, Story: st})
	return nil
}

// deleteFile is best-effort: the record is already gone.
func (s *Service) deleteFile(ctx context.Context, st *Story) {
	if err := s.files.Delete(ctx, st.FileKey); err != nil {
		s.logger.Warn("failed to delete story file",
			slog.String("story_id", st.ID),
			slog.String("file_key", st.FileKey),
			slog.String("error", err.Error()),
		)
	}
}
