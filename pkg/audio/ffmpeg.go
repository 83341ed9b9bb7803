package audio

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
)

// Compile-time assertion that FFmpeg implements Normalizer.
var _ Normalizer = (*FFmpeg)(nil)

// FFmpeg is a [Normalizer] that shells out to the ffmpeg and ffprobe
// binaries. Non-zero exit codes are reported as *[ConversionError] carrying
// the tool's stderr.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// FFmpegOption configures an FFmpeg normalizer.
type FFmpegOption func(*FFmpeg)

// WithFFmpegPath overrides the ffmpeg binary. Defaults to "ffmpeg" resolved
// via PATH.
func WithFFmpegPath(path string) FFmpegOption {
	return func(f *FFmpeg) {
		if path != "" {
			f.ffmpegPath = path
		}
	}
}

// WithFFprobePath overrides the ffprobe binary. Defaults to "ffprobe"
// resolved via PATH.
func WithFFprobePath(path string) FFmpegOption {
	return func(f *FFmpeg) {
		if path != "" {
			f.ffprobePath = path
		}
	}
}

// NewFFmpeg returns an FFmpeg normalizer. It does not verify that the
// binaries exist; call [FFmpeg.Available] for that.
func NewFFmpeg(opts ...FFmpegOption) *FFmpeg {
	f := &FFmpeg{
		ffmpegPath:  defaultFFmpegBinary,
		ffprobePath: defaultFFprobeBinary,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Available reports whether both binaries can be found.
func (f *FFmpeg) Available() error {
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return fmt.Errorf("audio: ffmpeg not found: %w", err)
	}
	if _, err := exec.LookPath(f.ffprobePath); err != nil {
		return fmt.Errorf("audio: ffprobe not found: %w", err)
	}
	return nil
}

// Normalize implements Normalizer.
func (f *FFmpeg) Normalize(ctx context.Context, src, dst string) error {
	args := []string{"-y", "-i", src}
	args = append(args, canonicalArgs(dst)...)
	if stderr, err := f.run(ctx, f.ffmpegPath, args); err != nil {
		return &ConversionError{Op: "normalize", Path: src, Stderr: stderr, Err: err}
	}
	return nil
}

// Extract implements Normalizer.
func (f *FFmpeg) Extract(ctx context.Context, src, dst string, start, dur time.Duration) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(dur),
		"-i", src,
	}
	args = append(args, canonicalArgs(dst)...)
	if stderr, err := f.run(ctx, f.ffmpegPath, args); err != nil {
		return &ConversionError{Op: "extract", Path: src, Stderr: stderr, Err: err}
	}
	return nil
}

// Duration implements Normalizer.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, &ConversionError{Op: "duration", Path: path, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	secs, err := parseDuration(stdout.String())
	if err != nil {
		return 0, &ConversionError{Op: "duration", Path: path, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return secs, nil
}

func (f *FFmpeg) run(ctx context.Context, bin string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimSpace(stderr.String()), err
}

func canonicalArgs(dst string) []string {
	return []string{
		"-vn",
		"-ac", strconv.Itoa(TargetChannels),
		"-ar", strconv.Itoa(TargetSampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		dst,
	}
}

// parseDuration parses ffprobe's duration output, a float in seconds. ffprobe
// prints "N/A" for streams it cannot measure.
func parseDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable duration %q", s)
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return secs, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
