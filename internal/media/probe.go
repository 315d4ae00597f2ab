package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// probeOutput is the subset of ffprobe's JSON report we rely on.
type probeOutput struct {
	Format  *probeFormat  `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
}

// Validate reports whether ffprobe can read the container metadata of src.
func (p *FFmpegProcessor) Validate(ctx context.Context, src io.Reader) bool {
	path, release, err := p.spool(ctx, "validate", src)
	defer release()
	if err != nil {
		p.logger.Warn("video validation skipped", slog.String("error", err.Error()))
		return false
	}

	if err := p.probeFile(ctx, path, false); err != nil {
		p.logger.Info("video validation failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Duration returns the container duration of src in seconds, or 0 when it
// cannot be determined.
func (p *FFmpegProcessor) Duration(ctx context.Context, src io.Reader) float64 {
	path, release, err := p.spool(ctx, "duration", src)
	defer release()
	if err != nil {
		p.logger.Warn("duration probe skipped", slog.String("error", err.Error()))
		return 0
	}

	duration, err := p.probeDuration(ctx, path)
	if err != nil {
		p.logger.Info("duration probe failed", slog.String("error", err.Error()))
		return 0
	}
	return duration
}

// probeFile runs ffprobe on path and requires a parseable format section.
// withStreams additionally asks for stream details, which forces ffprobe to
// open the elementary streams instead of only the container header.
func (p *FFmpegProcessor) probeFile(ctx context.Context, path string, withStreams bool) error {
	args := []string{"-v", "quiet", "-print_format", "json", "-show_format"}
	if withStreams {
		args = append(args, "-show_streams")
	}
	args = append(args, path)

	out, err := p.runTool(ctx, p.cfg.FFprobePath, args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFFprobeExecution, err)
	}

	var report probeOutput
	if err := json.Unmarshal(out, &report); err != nil {
		return fmt.Errorf("parse ffprobe output: %w", err)
	}
	if report.Format == nil {
		return fmt.Errorf("%w: no format section", ErrFFprobeExecution)
	}
	return nil
}

// probeDuration asks ffprobe for the bare format duration of path.
func (p *FFmpegProcessor) probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := p.runTool(ctx, p.cfg.FFprobePath, []string{
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFFprobeExecution, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}
