package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/story-api/internal/storage"
)

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// skipIfNoShell skips tests that rely on fake tool scripts.
func skipIfNoShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool scripts need a POSIX shell")
	}
}

// createTestVideo creates a simple test video using ffmpeg.
func createTestVideo(t *testing.T, path string, duration float64, color string) {
	t.Helper()

	// Create a simple video with solid color and silent audio
	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=64x64:d=%.1f", color, duration),
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=44100:cl=mono:d=%.1f", duration),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-c:a", "aac",
		"-shortest",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

// getVideoDuration reads a file's duration with the real ffprobe.
func getVideoDuration(t *testing.T, path string) float64 {
	t.Helper()

	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	).Output()
	require.NoError(t, err)

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	require.NoError(t, err)
	return d
}

// writeScript writes an executable shell script named name into dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755)) // #nosec G306 - test helper
	return path
}

// fakeFFprobe reports the given duration for any input, and fails for files
// whose content contains "corrupt".
func fakeFFprobe(t *testing.T, dir string, duration float64) string {
	t.Helper()
	return writeScript(t, dir, "ffprobe", fmt.Sprintf(`for a in "$@"; do last="$a"; done
if grep -q corrupt "$last" 2>/dev/null; then exit 1; fi
case "$*" in
  *csv=p=0*) echo "%f" ;;
  *) echo '{"format":{"format_name":"mov,mp4,m4a","duration":"%f"}}' ;;
esac
`, duration, duration))
}

// Fake ffmpeg bodies; the output path is always the last argument.
const (
	ffmpegWritesOutput = `for a in "$@"; do last="$a"; done
echo "trimmed $*" > "$last"
`
	ffmpegCopyFails = `for a in "$@"; do last="$a"; done
case "$*" in *"-c copy"*) echo "codec not supported" >&2; exit 1 ;; esac
echo "reencoded" > "$last"
`
	ffmpegAlwaysFails = `echo "boom" >&2
exit 1
`
	ffmpegEmptyOutput = `for a in "$@"; do last="$a"; done
: > "$last"
`
	ffmpegCorruptOutput = `for a in "$@"; do last="$a"; done
echo corrupt > "$last"
`
)

func newTestProcessor(t *testing.T, cfg Config) (*FFmpegProcessor, *storage.LocalStorage) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewLocalStorage(filepath.Join(root, "tmp"), filepath.Join(root, "media"), "")
	require.NoError(t, err)
	return NewFFmpegProcessor(cfg, store, nil), store
}

// assertTempEmpty checks every scratch file was released.
func assertTempEmpty(t *testing.T, store *storage.LocalStorage) {
	t.Helper()
	entries, err := os.ReadDir(store.TempDir())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Empty(t, names, "temp files left behind")
}

func TestNewFFmpegProcessor(t *testing.T) {
	t.Run("default paths", func(t *testing.T) {
		p := NewFFmpegProcessor(Config{}, nil, nil)
		assert.Equal(t, "ffmpeg", p.cfg.FFmpegPath)
		assert.Equal(t, "ffprobe", p.cfg.FFprobePath)
		assert.Equal(t, DefaultToolTimeout, p.cfg.Timeout)
		assert.NotNil(t, p.logger)
	})

	t.Run("custom paths", func(t *testing.T) {
		p := NewFFmpegProcessor(Config{
			FFmpegPath:  "/usr/local/bin/ffmpeg",
			FFprobePath: "/usr/local/bin/ffprobe",
			Timeout:     time.Second,
		}, nil, nil)
		assert.Equal(t, "/usr/local/bin/ffmpeg", p.cfg.FFmpegPath)
		assert.Equal(t, "/usr/local/bin/ffprobe", p.cfg.FFprobePath)
		assert.Equal(t, time.Second, p.cfg.Timeout)
	})
}

func TestToolError(t *testing.T) {
	innerErr := errors.New("exit status 1")
	err := &ToolError{
		Tool:   "ffmpeg",
		Args:   []string{"-i", "input.mp4", "output.mp4"},
		Stderr: "Error: file not found",
		Err:    innerErr,
	}

	msg := err.Error()
	assert.Contains(t, msg, "ffmpeg error")
	assert.Contains(t, msg, "exit status 1")
	assert.Contains(t, msg, "Error: file not found")
	assert.True(t, errors.Is(err, innerErr))
}

func TestRunTool_NotFound(t *testing.T) {
	p, _ := newTestProcessor(t, Config{})

	tests := []struct {
		name string
		bin  string
	}{
		{"not on PATH", "definitely-not-a-real-tool-xyz"},
		{"absolute path", filepath.Join(t.TempDir(), "missing", "ffprobe")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.runTool(context.Background(), tt.bin, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrToolNotFound)

			var toolErr *ToolError
			assert.False(t, errors.As(err, &toolErr))
		})
	}
}

func TestValidate_FakeTools(t *testing.T) {
	skipIfNoShell(t)
	bin := t.TempDir()
	ctx := context.Background()

	t.Run("parseable metadata is valid", func(t *testing.T) {
		p, store := newTestProcessor(t, Config{FFprobePath: fakeFFprobe(t, bin, 12)})
		assert.True(t, p.Validate(ctx, strings.NewReader("some video bytes")))
		assertTempEmpty(t, store)
	})

	t.Run("probe failure is invalid", func(t *testing.T) {
		p, store := newTestProcessor(t, Config{FFprobePath: fakeFFprobe(t, bin, 12)})
		assert.False(t, p.Validate(ctx, strings.NewReader("corrupt bytes")))
		assertTempEmpty(t, store)
	})

	t.Run("output without format section is invalid", func(t *testing.T) {
		probe := writeScript(t, t.TempDir(), "ffprobe", "echo '{}'\n")
		p, _ := newTestProcessor(t, Config{FFprobePath: probe})
		assert.False(t, p.Validate(ctx, strings.NewReader("x")))
	})

	t.Run("unparseable output is invalid", func(t *testing.T) {
		probe := writeScript(t, t.TempDir(), "ffprobe", "echo not-json\n")
		p, _ := newTestProcessor(t, Config{FFprobePath: probe})
		assert.False(t, p.Validate(ctx, strings.NewReader("x")))
	})

	t.Run("missing binary is invalid", func(t *testing.T) {
		p, store := newTestProcessor(t, Config{FFprobePath: filepath.Join(bin, "no-such-ffprobe")})
		assert.False(t, p.Validate(ctx, strings.NewReader("x")))
		assertTempEmpty(t, store)
	})

	t.Run("timeout is invalid", func(t *testing.T) {
		probe := writeScript(t, t.TempDir(), "ffprobe", "exec sleep 5\n")
		p, store := newTestProcessor(t, Config{FFprobePath: probe, Timeout: 100 * time.Millisecond})

		start := time.Now()
		assert.False(t, p.Validate(ctx, strings.NewReader("x")))
		assert.Less(t, time.Since(start), 4*time.Second)
		assertTempEmpty(t, store)
	})
}

func TestDuration_FakeTools(t *testing.T) {
	skipIfNoShell(t)
	ctx := context.Background()

	t.Run("parses reported duration", func(t *testing.T) {
		p, store := newTestProcessor(t, Config{FFprobePath: fakeFFprobe(t, t.TempDir(), 90.5)})
		assert.InDelta(t, 90.5, p.Duration(ctx, strings.NewReader("video")), 0.001)
		assertTempEmpty(t, store)
	})

	t.Run("N/A duration yields zero", func(t *testing.T) {
		probe := writeScript(t, t.TempDir(), "ffprobe", "echo N/A\n")
		p, _ := newTestProcessor(t, Config{FFprobePath: probe})
		assert.Zero(t, p.Duration(ctx, strings.NewReader("video")))
	})

	t.Run("trailing garbage yields zero", func(t *testing.T) {
		probe := writeScript(t, t.TempDir(), "ffprobe", "echo 12.5junk\n")
		p, _ := newTestProcessor(t, Config{FFprobePath: probe})
		assert.Zero(t, p.Duration(ctx, strings.NewReader("video")))
	})

	t.Run("surrounding whitespace is accepted", func(t *testing.T) {
		probe := writeScript(t, t.TempDir(), "ffprobe", "printf '  42.25 \\n'\n")
		p, _ := newTestProcessor(t, Config{FFprobePath: probe})
		assert.InDelta(t, 42.25, p.Duration(ctx, strings.NewReader("video")), 0.001)
	})

	t.Run("missing binary yields zero", func(t *testing.T) {
		p, _ := newTestProcessor(t, Config{FFprobePath: "/nonexistent/ffprobe"})
		assert.Zero(t, p.Duration(ctx, strings.NewReader("video")))
	})
}

func TestTrim_FakeTools(t *testing.T) {
	skipIfNoShell(t)
	ctx := context.Background()
	original := []byte("original video bytes")

	tests := []struct {
		name         string
		ffmpeg       string
		wantTrimmed  bool
		wantStrategy TrimStrategy
		wantPrefix   string
	}{
		{"fast path succeeds", ffmpegWritesOutput, true, StrategyCopy, "trimmed"},
		{"fallback after copy failure", ffmpegCopyFails, true, StrategyReencode, "reencoded"},
		{"both strategies fail", ffmpegAlwaysFails, false, StrategyOriginal, "original"},
		{"empty output is rejected", ffmpegEmptyOutput, false, StrategyOriginal, "original"},
		{"unprobeable output is rejected", ffmpegCorruptOutput, false, StrategyOriginal, "original"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := t.TempDir()
			p, store := newTestProcessor(t, Config{
				FFmpegPath:  writeScript(t, bin, "ffmpeg", tt.ffmpeg),
				FFprobePath: fakeFFprobe(t, bin, 60),
			})

			src := bytes.NewReader(original)
			res := p.Trim(ctx, src, 60)

			assert.Equal(t, tt.wantTrimmed, res.Trimmed)
			assert.Equal(t, tt.wantStrategy, res.Strategy)

			got, err := io.ReadAll(res.Reader)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(got), tt.wantPrefix), "got %q", got)

			if tt.wantTrimmed {
				assert.Equal(t, ".mp4", res.Ext)
			} else {
				assert.Empty(t, res.Ext)
				assert.Same(t, src, res.Reader)
			}

			require.NoError(t, res.Close())
			assertTempEmpty(t, store)
		})
	}

	t.Run("fast path passes the exact cut arguments", func(t *testing.T) {
		bin := t.TempDir()
		p, _ := newTestProcessor(t, Config{
			FFmpegPath:  writeScript(t, bin, "ffmpeg", ffmpegWritesOutput),
			FFprobePath: fakeFFprobe(t, bin, 60),
		})

		res := p.Trim(ctx, bytes.NewReader(original), 60)
		defer func() { _ = res.Close() }()

		got, err := io.ReadAll(res.Reader)
		require.NoError(t, err)
		assert.Contains(t, string(got), "-t 60 -c copy -avoid_negative_ts make_zero -y")
	})
}

func TestFFmpegProcessor_RealTools(t *testing.T) {
	skipIfNoFFmpeg(t)

	p, store := newTestProcessor(t, Config{})
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "clip.mp4")
	createTestVideo(t, src, 3.0, "blue")
	data, err := os.ReadFile(src)
	require.NoError(t, err)

	t.Run("validate accepts a real video", func(t *testing.T) {
		assert.True(t, p.Validate(ctx, bytes.NewReader(data)))
	})

	t.Run("validate rejects garbage", func(t *testing.T) {
		assert.False(t, p.Validate(ctx, strings.NewReader("definitely not a video")))
	})

	t.Run("duration is measured", func(t *testing.T) {
		assert.InDelta(t, 3.0, p.Duration(ctx, bytes.NewReader(data)), 0.2)
	})

	t.Run("trim shortens to the limit", func(t *testing.T) {
		res := p.Trim(ctx, bytes.NewReader(data), 1)
		defer func() { _ = res.Close() }()

		require.True(t, res.Trimmed)
		out := filepath.Join(t.TempDir(), "out.mp4")
		f, err := os.Create(out)
		require.NoError(t, err)
		_, err = io.Copy(f, res.Reader)
		require.NoError(t, err)
		require.NoError(t, f.Close())

		assert.LessOrEqual(t, getVideoDuration(t, out), 1.5)
	})

	t.Run("scratch files are released", func(t *testing.T) {
		assertTempEmpty(t, store)
	})
}
