package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

// TrimStrategy records which ffmpeg path produced a trim result.
type TrimStrategy string

const (
	// StrategyCopy is the stream copy fast path.
	StrategyCopy TrimStrategy = "copy"
	// StrategyReencode is the libx264/aac fallback.
	StrategyReencode TrimStrategy = "reencode"
	// StrategyOriginal means the input was returned untouched.
	StrategyOriginal TrimStrategy = "original"
)

// trimmedExt is the container written by both trim strategies.
const trimmedExt = ".mp4"

// TrimResult is the outcome of Trim.
type TrimResult struct {
	// Reader yields the bytes to persist, positioned at the start.
	Reader io.ReadSeeker
	// Trimmed is true only for a replacement that passed validation.
	Trimmed bool
	// Strategy tells which path produced Reader.
	Strategy TrimStrategy
	// Ext is the file extension of the replacement, empty for the original.
	Ext string

	closeFn func() error
}

// Close releases the replacement file, if any. The original input is never closed.
func (r TrimResult) Close() error {
	if r.closeFn == nil {
		return nil
	}
	return r.closeFn()
}

// Trim cuts src to at most maxSeconds. A stream copy is tried first and a
// libx264/aac re-encode only when the copy fails. The produced file must be
// non-empty and readable by ffprobe; otherwise the original is returned.
func (p *FFmpegProcessor) Trim(ctx context.Context, src io.ReadSeeker, maxSeconds float64) TrimResult {
	original := TrimResult{Reader: src, Strategy: StrategyOriginal}

	input, releaseInput, err := p.spool(ctx, "trim_input", src)
	defer releaseInput()
	if _, seekErr := src.Seek(0, io.SeekStart); seekErr != nil {
		p.logger.Error("failed to rewind trim input", slog.String("error", seekErr.Error()))
	}
	if err != nil {
		p.logger.Warn("trim skipped, keeping original", slog.String("error", err.Error()))
		return original
	}

	output := filepath.Join(p.temp.TempDir(), "trim_"+uuid.NewString()+trimmedExt)

	strategy := StrategyCopy
	if err := p.trimWithCopy(ctx, input, output, maxSeconds); err != nil {
		p.logger.Info("stream copy trim failed, re-encoding", slog.String("error", err.Error()))
		strategy = StrategyReencode
		if err := p.trimWithReencode(ctx, input, output, maxSeconds); err != nil {
			p.release(output)
			p.logger.Warn("trim failed, keeping original", slog.String("error", err.Error()))
			return original
		}
	}

	if err := p.verifyOutput(ctx, output); err != nil {
		p.release(output)
		p.logger.Warn("trimmed output rejected, keeping original",
			slog.String("strategy", string(strategy)),
			slog.String("error", err.Error()),
		)
		return original
	}

	f, err := os.Open(output) // #nosec G304 - output is created under the temp dir above
	if err != nil {
		p.release(output)
		p.logger.Warn("failed to open trimmed output, keeping original", slog.String("error", err.Error()))
		return original
	}

	p.logger.Info("video trimmed",
		slog.String("strategy", string(strategy)),
		slog.Float64("max_seconds", maxSeconds),
	)

	return TrimResult{
		Reader:   f,
		Trimmed:  true,
		Strategy: strategy,
		Ext:      trimmedExt,
		closeFn: func() error {
			closeErr := f.Close()
			p.release(output)
			return closeErr
		},
	}
}

// trimWithCopy cuts without re-encoding.
func (p *FFmpegProcessor) trimWithCopy(ctx context.Context, input, output string, maxSeconds float64) error {
	args := []string{
		"-i", input,
		"-t", formatSeconds(maxSeconds),
		"-c", "copy", // Copy streams without re-encoding
		"-avoid_negative_ts", "make_zero",
		"-y", // Overwrite output file
		output,
	}
	_, err := p.runTool(ctx, p.cfg.FFmpegPath, args)
	return err
}

// trimWithReencode cuts by re-encoding with libx264/aac.
func (p *FFmpegProcessor) trimWithReencode(ctx context.Context, input, output string, maxSeconds float64) error {
	args := []string{
		"-i", input,
		"-t", formatSeconds(maxSeconds),
		"-c:v", "libx264", // Video codec
		"-c:a", "aac", // Audio codec
		"-preset", "fast", // Encoding speed preset
		"-crf", "23", // Quality (lower = better, 23 is default)
		"-avoid_negative_ts", "make_zero",
		"-y", // Overwrite output file
		output,
	}
	_, err := p.runTool(ctx, p.cfg.FFmpegPath, args)
	return err
}

// verifyOutput checks the trimmed file exists, is non-empty and probes cleanly.
func (p *FFmpegProcessor) verifyOutput(ctx context.Context, output string) error {
	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("stat trimmed output: %w", err)
	}
	if info.Size() == 0 {
		return ErrEmptyOutput
	}
	return p.probeFile(ctx, output, true)
}

// formatSeconds renders a duration for ffmpeg's -t flag, "60" rather than "60.000000".
func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64)
}
