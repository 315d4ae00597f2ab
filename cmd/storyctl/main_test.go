package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/story-api/internal/auth"
)

const testSecret = "ctl-secret"

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_CONNECTION", filepath.Join(dir, "stories.db")+"?_pragma=foreign_keys(1)&_time_format=sqlite")
	t.Setenv("TEMP_DIR", filepath.Join(dir, "tmp"))
	t.Setenv("MEDIA_DIR", filepath.Join(dir, "media"))
	t.Setenv("S3_BUCKET", "")
	t.Setenv("SENTRY_DSN", "")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCmd(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "token", "user-7", "--ttl", "1h")
	require.NoError(t, err)

	userID, err := auth.NewVerifier(testSecret).Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-7", userID)
}

func TestTokenCmd_RequiresUser(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "token")
	require.Error(t, err)
}

func TestMigrateCmd(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "database at version 1")

	out, err = execute(t, "migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "database at version 0")
}

func TestSweepCmd(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 0 expired stories")
}

func TestCommands_RequireSecret(t *testing.T) {
	setupEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "token", "user-7")
	require.Error(t, err)
}
