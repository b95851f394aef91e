// Package postprocess shells out to ffmpeg for the lossless steps that
// follow a download: metadata stripping and stream muxing.
package postprocess

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ytget/ytgrab/errs"
	"github.com/ytget/ytgrab/internal/logx"
)

const (
	ffmpegCommand  = "ffmpeg"
	ffprobeCommand = "ffprobe"

	ffprobeLogLevel     = "error"
	ffprobeShowEntries  = "format=duration"
	ffprobeOutputFormat = "csv=p=0"

	progressPipeTarget = "pipe:2"
	progressTimePrefix = "out_time_us="
	progressEndLine    = "progress=end"

	strippedSuffix = "-clean"
)

var plog = logx.For(logx.Postprocess)

// Processor wraps the ffmpeg and ffprobe binaries.
type Processor struct {
	ffmpegPath   string
	ffprobePath  string
	progressFunc func(percent float64)
}

// New locates ffmpeg on PATH. Returns errs.ErrFFmpegNotFound when the binary
// is not installed; ffprobe is optional and only needed for Duration.
func New() (*Processor, error) {
	ffmpegPath, err := exec.LookPath(ffmpegCommand)
	if err != nil {
		return nil, errs.ErrFFmpegNotFound
	}
	ffprobePath, _ := exec.LookPath(ffprobeCommand)
	return &Processor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}, nil
}

// WithProgress registers a callback receiving completion percent (0-100)
// parsed from ffmpeg -progress output. Progress requires ffprobe to measure
// the input duration; without it the callback is never invoked.
func (p *Processor) WithProgress(fn func(percent float64)) *Processor {
	p.progressFunc = fn
	return p
}

// buildStripArgs builds the argument list for a lossless metadata strip.
func buildStripArgs(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-map_metadata", "-1",
		"-c", "copy",
		outputPath,
	}
}

// buildMuxArgs builds the argument list for muxing separate video and audio
// streams into one container without re-encoding.
func buildMuxArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c", "copy",
		outputPath,
	}
}

// run executes ffmpeg with args. With a registered progress callback and a
// known input duration the -progress stream is parsed live; otherwise the
// combined output is captured so errors carry ffmpeg's stderr.
func (p *Processor) run(ctx context.Context, args []string, totalDuration float64) error {
	if p.progressFunc == nil || totalDuration <= 0 {
		cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}

	args = append([]string{"-progress", progressPipeTarget, "-nostats"}, args...)
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	scanProgress(stderr, totalDuration, p.progressFunc)
	return cmd.Wait()
}

// scanProgress parses ffmpeg -progress key=value lines and reports completion
// percent on every out_time_us update. The final progress=end line always
// reports 100.
func scanProgress(r io.Reader, totalDuration float64, fn func(percent float64)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == progressEndLine {
			fn(100)
			continue
		}
		if !strings.HasPrefix(line, progressTimePrefix) {
			continue
		}
		us, err := strconv.ParseInt(strings.TrimPrefix(line, progressTimePrefix), 10, 64)
		if err != nil || us < 0 {
			continue
		}
		percent := float64(us) / 1e6 / totalDuration * 100
		if percent > 100 {
			percent = 100
		}
		fn(percent)
	}
}

// durationForProgress probes the input duration when progress reporting is
// enabled. Zero disables progress for the run.
func (p *Processor) durationForProgress(ctx context.Context, path string) float64 {
	if p.progressFunc == nil || p.ffprobePath == "" {
		return 0
	}
	d, err := p.Duration(ctx, path)
	if err != nil {
		plog.Debug("duration probe failed, running without progress", "path", path, "err", err)
		return 0
	}
	return d
}

// StripMetadata rewrites the file without any container metadata and
// replaces the original in place. Streams are copied, not re-encoded.
func (p *Processor) StripMetadata(ctx context.Context, path string) error {
	ext := filepath.Ext(path)
	cleanPath := strings.TrimSuffix(path, ext) + strippedSuffix + ext

	plog.Debug("stripping metadata", "path", path)
	if err := p.run(ctx, buildStripArgs(path, cleanPath), p.durationForProgress(ctx, path)); err != nil {
		_ = os.Remove(cleanPath)
		return fmt.Errorf("ffmpeg metadata strip failed: %w", err)
	}

	if err := os.Remove(path); err != nil {
		_ = os.Remove(cleanPath)
		return fmt.Errorf("failed to remove original file: %w", err)
	}
	return os.Rename(cleanPath, path)
}

// Mux combines a video-only and an audio-only stream into outputPath and
// removes both inputs on success.
func (p *Processor) Mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	plog.Debug("muxing streams", "video", videoPath, "audio", audioPath, "out", outputPath)
	if err := p.run(ctx, buildMuxArgs(videoPath, audioPath, outputPath), p.durationForProgress(ctx, videoPath)); err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("ffmpeg mux failed: %w", err)
	}
	_ = os.Remove(videoPath)
	_ = os.Remove(audioPath)
	return nil
}

// Duration reads the media duration in seconds using ffprobe.
func (p *Processor) Duration(ctx context.Context, path string) (float64, error) {
	if p.ffprobePath == "" {
		return 0, fmt.Errorf("ffprobe not found in PATH")
	}
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", ffprobeLogLevel,
		"-show_entries", ffprobeShowEntries,
		"-of", ffprobeOutputFormat,
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return duration, nil
}
