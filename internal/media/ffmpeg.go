package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"time"
)

// Static errors for media operations.
var (
	// ErrToolNotFound is returned when the configured ffmpeg or ffprobe binary cannot be found.
	ErrToolNotFound = errors.New("media tool not found")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrEmptyOutput is returned when ffmpeg exits cleanly but writes nothing.
	ErrEmptyOutput = errors.New("ffmpeg produced empty output")
)

// DefaultToolTimeout bounds a single ffmpeg or ffprobe invocation.
const DefaultToolTimeout = 2 * time.Minute

// Config holds the external tool settings.
type Config struct {
	// FFmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	FFmpegPath string
	// FFprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	FFprobePath string
	// Timeout bounds each invocation. Defaults to DefaultToolTimeout.
	Timeout time.Duration
}

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	cfg    Config
	temp   TempStore
	logger *slog.Logger
}

// Compile-time check that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)

// NewFFmpegProcessor creates a new FFmpegProcessor.
// Empty binary paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegProcessor(cfg Config, temp TempStore, logger *slog.Logger) *FFmpegProcessor {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultToolTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegProcessor{cfg: cfg, temp: temp, logger: logger}
}

// runTool executes bin with args under the per-call timeout and returns stdout.
func (p *FFmpegProcessor) runTool(ctx context.Context, bin string, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	// #nosec G204 - binary paths come from configuration, not user input
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, bin)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s cancelled: %w", bin, ctx.Err())
		}
		return nil, &ToolError{
			Tool:   bin,
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return stdout.Bytes(), nil
}

// ToolError represents a failed ffmpeg or ffprobe run, including the stderr output.
type ToolError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s error: %v\nargs: %v\nstderr: %s", e.Tool, e.Err, e.Args, e.Stderr)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// spool copies src into a scratch file and returns its path along with a
// release func that removes it. Removal failures are logged, never returned.
func (p *FFmpegProcessor) spool(ctx context.Context, name string, src io.Reader) (string, func(), error) {
	path, err := p.temp.SaveTemp(ctx, name, src)
	if err != nil {
		return "", func() {}, fmt.Errorf("spool %s: %w", name, err)
	}
	return path, func() { p.release(path) }, nil
}

// release removes scratch files, logging instead of failing.
func (p *FFmpegProcessor) release(paths ...string) {
	// cleanup must run even when the request context is already done
	if err := p.temp.CleanupTemp(context.Background(), paths); err != nil {
		p.logger.Warn("failed to remove temp files",
			slog.Any("paths", paths),
			slog.String("error", err.Error()),
		)
	}
}
