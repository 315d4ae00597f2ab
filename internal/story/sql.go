package story

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Compile-time check that SQLRepository implements Repository.
var _ Repository = (*SQLRepository)(nil)

// SQLRepository persists stories in the "stories" table through sqlx.
// Queries use $N placeholders, which both the pgx and modernc sqlite
// drivers accept.
type SQLRepository struct {
	db *sqlx.DB
}

// NewSQLRepository creates a repository over an open, migrated database.
func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// storyRow mirrors the table; media_type is nullable.
type storyRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	FileKey   string         `db:"file_key"`
	MediaType sql.NullString `db:"media_type"`
	Duration  int            `db:"duration"`
	Trimmed   bool           `db:"is_trimmed"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r storyRow) toStory() *Story {
	return &Story{
		ID:        r.ID,
		UserID:    r.UserID,
		FileKey:   r.FileKey,
		MediaType: MediaType(r.MediaType.String),
		Duration:  r.Duration,
		Trimmed:   r.Trimmed,
		CreatedAt: r.CreatedAt,
	}
}

const storyColumns = `id, user_id, file_key, media_type, duration, is_trimmed, created_at`

// dbTime normalizes timestamps so text-backed sqlite columns compare in order.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Create inserts a new story row.
func (r *SQLRepository) Create(ctx context.Context, s *Story) error {
	mediaType := sql.NullString{String: string(s.MediaType), Valid: s.MediaType != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stories (`+storyColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID, s.FileKey, mediaType, s.Duration, s.Trimmed, dbTime(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert story: %w", err)
	}
	return nil
}

// FindByID retrieves a story by its ID.
func (r *SQLRepository) FindByID(ctx context.Context, id string) (*Story, error) {
	var row storyRow
	err := r.db.GetContext(ctx, &row, `SELECT `+storyColumns+` FROM stories WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	return row.toStory(), nil
}

// ListCreatedSince returns stories created at or after cutoff, newest first.
func (r *SQLRepository) ListCreatedSince(ctx context.Context, cutoff time.Time) ([]*Story, error) {
	return r.list(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE created_at >= $1 ORDER BY created_at DESC, id ASC`,
		dbTime(cutoff),
	)
}

// ListCreatedBefore returns stories created strictly before cutoff, newest first.
func (r *SQLRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Story, error) {
	return r.list(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE created_at < $1 ORDER BY created_at DESC, id ASC`,
		dbTime(cutoff),
	)
}

// Delete removes a story row.
func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	if n == 0 {
		return ErrStoryNotFound
	}
	return nil
}

func (r *SQLRepository) list(ctx context.Context, query string, args ...any) ([]*Story, error) {
	var rows []storyRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}

	stories := make([]*Story, 0, len(rows))
	for _, row := range rows {
		s := row.toStory()
		s.CreatedAt = s.CreatedAt.UTC()
		stories = append(stories, s)
	}
	return stories, nil
}
