package story

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/maauso/story-api/internal/media"
)

// ErrStagePanic wraps a panic raised inside an ingestion stage.
var ErrStagePanic = errors.New("ingestion stage panicked")

// UploadInput is a single story upload.
type UploadInput struct {
	// UserID is the authenticated owner.
	UserID string
	// FileName is the client supplied name, used for classification and the stored extension.
	FileName string
	// ContentType is the declared or sniffed MIME type.
	ContentType string
	// Body is the uploaded bytes. It is rewound before every stage.
	Body io.ReadSeeker
}

// IngestError is returned when an upload could not be saved even in its
// original form. Err is the failure that triggered the fallback save.
type IngestError struct {
	Err     error
	SaveErr error
}

func (e *IngestError) Error() string {
	if e.SaveErr == nil {
		return fmt.Sprintf("ingest story: %v", e.Err)
	}
	return fmt.Sprintf("ingest story: %v (saving original failed: %v)", e.Err, e.SaveErr)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// Ingest classifies, validates and, when too long, trims an upload before
// persisting it. Processing failures never reject the upload: the original
// file is saved instead. An *IngestError is returned only when that save
// fails too.
func (s *Service) Ingest(ctx context.Context, in UploadInput) (*Story, error) {
	p := newPipeline()
	kind := media.KindUnknown

	st, err := s.runStages(ctx, p, in, &kind)
	if err == nil {
		s.ingested(ctx, p, st)
		return st, nil
	}

	// the degraded save already ran and failed
	if p.state == StateDegradedSave {
		_ = p.to(StateFailed)
		s.logger.Error("story ingestion failed",
			slog.String("user_id", in.UserID),
			slog.Any("states", p.history),
			slog.String("error", err.Error()),
		)
		return nil, &IngestError{Err: err}
	}

	s.logger.Warn("ingestion stage failed, saving original",
		slog.String("user_id", in.UserID),
		slog.String("state", string(p.state)),
		slog.String("error", err.Error()),
	)

	if tErr := p.to(StateDegradedSave); tErr != nil {
		return nil, &IngestError{Err: err, SaveErr: tErr}
	}

	st, saveErr := s.persist(ctx, in, in.Body, originalExt(in.FileName), mediaTypeFor(kind), false)
	if saveErr != nil {
		_ = p.to(StateFailed)
		s.logger.Error("story ingestion failed",
			slog.String("user_id", in.UserID),
			slog.Any("states", p.history),
			slog.String("error", saveErr.Error()),
		)
		return nil, &IngestError{Err: err, SaveErr: saveErr}
	}
	if err := p.to(StatePersisted); err != nil {
		return nil, err
	}

	s.ingested(ctx, p, st)
	return st, nil
}

// runStages walks the happy path. Panics are turned into errors so the
// caller can fall back to saving the original.
func (s *Service) runStages(ctx context.Context, p *pipeline, in UploadInput, kind *media.Kind) (st *Story, err error) {
	defer func() {
		if r := recover(); r != nil {
			st = nil
			err = fmt.Errorf("%w: %v", ErrStagePanic, r)
		}
	}()

	*kind = media.Classify(in.FileName, in.ContentType)
	if err := p.to(StateClassified); err != nil {
		return nil, err
	}

	ext := originalExt(in.FileName)

	if *kind != media.KindVideo {
		return s.finish(ctx, p, in, in.Body, ext, MediaImage, false)
	}

	if err := rewind(in.Body); err != nil {
		return nil, err
	}
	if !s.processor.Validate(ctx, in.Body) {
		if err := p.to(StateDegradedSave); err != nil {
			return nil, err
		}
		return s.finish(ctx, p, in, in.Body, ext, MediaVideo, false)
	}
	if err := p.to(StateValidated); err != nil {
		return nil, err
	}

	if err := rewind(in.Body); err != nil {
		return nil, err
	}
	maxSeconds := float64(s.settings.MaxVideoSeconds)
	duration := s.processor.Duration(ctx, in.Body)

	if duration <= maxSeconds {
		if err := p.to(StateNoTrimNeeded); err != nil {
			return nil, err
		}
		return s.finish(ctx, p, in, in.Body, ext, MediaVideo, false)
	}

	if err := p.to(StateNeedsTrim); err != nil {
		return nil, err
	}
	if err := rewind(in.Body); err != nil {
		return nil, err
	}

	res := s.processor.Trim(ctx, in.Body, maxSeconds)
	defer func() {
		if cerr := res.Close(); cerr != nil {
			s.logger.Warn("failed to release trimmed file", slog.String("error", cerr.Error()))
		}
	}()

	s.logger.Info("video exceeded limit",
		slog.Float64("duration", duration),
		slog.Float64("max_seconds", maxSeconds),
		slog.String("strategy", string(res.Strategy)),
		slog.Bool("trimmed", res.Trimmed),
	)

	if res.Trimmed {
		ext = res.Ext
	}
	return s.finish(ctx, p, in, res.Reader, ext, MediaVideo, res.Trimmed)
}

// finish persists body and moves the pipeline to PERSISTED.
func (s *Service) finish(ctx context.Context, p *pipeline, in UploadInput, body io.ReadSeeker, ext string, mt MediaType, trimmed bool) (*Story, error) {
	st, err := s.persist(ctx, in, body, ext, mt, trimmed)
	if err != nil {
		return nil, err
	}
	if err := p.to(StatePersisted); err != nil {
		return nil, err
	}
	return st, nil
}

// persist stores the file and then the record. If the record cannot be
// created the stored file is removed again.
func (s *Service) persist(ctx context.Context, in UploadInput, body io.ReadSeeker, ext string, mt MediaType, trimmed bool) (*Story, error) {
	if err := rewind(body); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	key := fmt.Sprintf("stories/%s/%s%s", url.PathEscape(in.UserID), id, ext)

	if err := s.files.Put(ctx, key, body); err != nil {
		return nil, fmt.Errorf("store story file: %w", err)
	}

	st := &Story{
		ID:        id,
		UserID:    in.UserID,
		FileKey:   key,
		MediaType: mt,
		Duration:  s.settings.MaxVideoSeconds,
		Trimmed:   trimmed,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, st); err != nil {
		if delErr := s.files.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove file of unsaved story",
				slog.String("file_key", key),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("create story: %w", err)
	}
	return st, nil
}

func (s *Service) ingested(ctx context.Context, p *pipeline, st *Story) {
	s.logger.Info("story ingested",
		slog.String("story_id", st.ID),
		slog.String("user_id", st.UserID),
		slog.String("media_type", string(st.MediaType)),
		slog.Bool("trimmed", st.Trimmed),
		slog.Any("states", p.history),
	)
	s.notifier.Publish(ctx, Event{Type: EventCreated, Story: st})
}

func rewind(r io.Seeker) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}
	return nil
}

func originalExt(fileName string) string {
	return strings.ToLower(filepath.Ext(fileName))
}
