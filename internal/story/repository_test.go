package story

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/story-api/internal/db"
)

// repositoryFactories lets every repository run the same contract tests.
func repositoryFactories(t *testing.T) map[string]func(t *testing.T) Repository {
	t.Helper()
	return map[string]func(t *testing.T) Repository{
		"memory": func(t *testing.T) Repository {
			return NewMemoryRepository()
		},
		"sqlite": func(t *testing.T) Repository {
			dsn := filepath.Join(t.TempDir(), "stories.db") + "?_pragma=foreign_keys(1)&_time_format=sqlite"
			conn, err := db.Init(db.DriverSQLite, dsn)
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close(conn) })
			require.NoError(t, db.RunMigrations(conn.DB, db.DriverSQLite))
			return NewSQLRepository(conn)
		},
	}
}

func TestRepositories(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, newRepo := range repositoryFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("create and find", func(t *testing.T) {
				repo := newRepo(t)
				st := &Story{
					ID:        "s1",
					UserID:    "u1",
					FileKey:   "stories/u1/s1.mp4",
					MediaType: MediaVideo,
					Duration:  60,
					Trimmed:   true,
					CreatedAt: base,
				}
				require.NoError(t, repo.Create(ctx, st))

				got, err := repo.FindByID(ctx, "s1")
				require.NoError(t, err)
				assert.Equal(t, st.ID, got.ID)
				assert.Equal(t, st.UserID, got.UserID)
				assert.Equal(t, st.FileKey, got.FileKey)
				assert.Equal(t, MediaVideo, got.MediaType)
				assert.Equal(t, 60, got.Duration)
				assert.True(t, got.Trimmed)
				assert.True(t, base.Equal(got.CreatedAt), "created_at %v != %v", got.CreatedAt, base)
			})

			t.Run("find missing", func(t *testing.T) {
				repo := newRepo(t)
				_, err := repo.FindByID(ctx, "nope")
				assert.ErrorIs(t, err, ErrStoryNotFound)
			})

			t.Run("unset media type round trips as empty", func(t *testing.T) {
				repo := newRepo(t)
				require.NoError(t, repo.Create(ctx, &Story{ID: "s2", UserID: "u1", FileKey: "k", Duration: 60, CreatedAt: base}))
				got, err := repo.FindByID(ctx, "s2")
				require.NoError(t, err)
				assert.Empty(t, got.MediaType)
			})

			t.Run("list splits on cutoff newest first", func(t *testing.T) {
				repo := newRepo(t)
				for i := range 5 {
					require.NoError(t, repo.Create(ctx, &Story{
						ID:        fmt.Sprintf("s%d", i),
						UserID:    "u1",
						FileKey:   fmt.Sprintf("stories/u1/s%d.jpg", i),
						MediaType: MediaImage,
						Duration:  60,
						CreatedAt: base.Add(time.Duration(i) * time.Hour),
					}))
				}
				cutoff := base.Add(2 * time.Hour)

				recent, err := repo.ListCreatedSince(ctx, cutoff)
				require.NoError(t, err)
				assert.Equal(t, []string{"s4", "s3", "s2"}, ids(recent))

				old, err := repo.ListCreatedBefore(ctx, cutoff)
				require.NoError(t, err)
				assert.Equal(t, []string{"s1", "s0"}, ids(old))
			})

			t.Run("delete", func(t *testing.T) {
				repo := newRepo(t)
				require.NoError(t, repo.Create(ctx, &Story{ID: "s1", UserID: "u1", FileKey: "k", CreatedAt: base}))

				require.NoError(t, repo.Delete(ctx, "s1"))
				assert.ErrorIs(t, repo.Delete(ctx, "s1"), ErrStoryNotFound)

				_, err := repo.FindByID(ctx, "s1")
				assert.ErrorIs(t, err, ErrStoryNotFound)
			})
		})
	}
}

func TestMemoryRepository_ReturnsClones(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	st := &Story{ID: "s1", UserID: "u1", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, st))
	st.UserID = "mutated"

	got, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	got.UserID = "mutated again"
	again, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", again.UserID)
}

func ids(stories []*Story) []string {
	out := make([]string, 0, len(stories))
	for _, s := range stories {
		out = append(out, s.ID)
	}
	return out
}
