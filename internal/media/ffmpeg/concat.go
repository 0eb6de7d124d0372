package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"reelgen/internal/logging"
)

// ManifestName is the concat demuxer list written next to the output.
const ManifestName = "concat_list.txt"

// ConcatConfig names the binaries and encode preset used by Concatenator.
// FallbackBinary is only tried when Binary is not installed; empty or equal
// to Binary disables it.
type ConcatConfig struct {
	Binary         string
	FallbackBinary string
	Preset         Preset
}

// ConcatOption customizes a Concatenator.
type ConcatOption func(*Concatenator)

// WithConcatRunner overrides command execution (useful for tests).
func WithConcatRunner(run CommandRunner) ConcatOption {
	return func(c *Concatenator) {
		if run != nil {
			c.run = run
		}
	}
}

// WithConcatLogger attaches a logger.
func WithConcatLogger(logger *slog.Logger) ConcatOption {
	return func(c *Concatenator) {
		c.logger = logging.NewComponentLogger(logger, "stitch")
	}
}

// Concatenator joins clips into a single file.
type Concatenator struct {
	binary   string
	fallback string
	preset   Preset
	run      CommandRunner
	logger   *slog.Logger
}

// NewConcatenator builds a Concatenator from cfg.
func NewConcatenator(cfg ConcatConfig, opts ...ConcatOption) *Concatenator {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	fallback := strings.TrimSpace(cfg.FallbackBinary)
	if fallback == binary {
		fallback = ""
	}
	preset := cfg.Preset
	if preset.VideoCodec == "" {
		preset = DefaultPreset()
	}
	c := &Concatenator{
		binary:   binary,
		fallback: fallback,
		preset:   preset,
		run:      defaultCommandRunner,
		logger:   logging.NewComponentLogger(nil, "stitch"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Concat joins paths in order into output. It reports failure by returning
// false after logging; it never removes the input clips.
func (c *Concatenator) Concat(ctx context.Context, paths []string, output string) bool {
	logger := logging.WithContext(ctx, c.logger)
	if len(paths) == 0 {
		logging.WarnWithContext(logger, "no videos to stitch", "stitch_skipped",
			logging.String(logging.FieldImpact, "no final reel produced"),
		)
		return false
	}

	logger.Info("stitching videos", logging.Int("inputs", len(paths)), logging.String("output", output))
	for i, path := range paths {
		if info, err := os.Stat(path); err == nil {
			logger.Debug("stitch input", logging.Int("index", i+1), logging.String("path", path),
				logging.Float64("size_mb", float64(info.Size())/(1024*1024)))
		} else {
			logging.WarnWithContext(logger, "stitch input missing", "stitch_input_missing",
				logging.String("path", path),
				logging.String(logging.FieldImpact, "ffmpeg will likely fail"),
			)
		}
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		logging.ErrorWithContext(logger, "create output directory failed", "stitch_failed", logging.Error(err))
		return false
	}
	manifest := filepath.Join(filepath.Dir(output), ManifestName)
	if err := writeManifest(manifest, paths); err != nil {
		logging.ErrorWithContext(logger, "write concat manifest failed", "stitch_failed", logging.Error(err))
		return false
	}
	defer func() {
		if err := os.Remove(manifest); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Debug("remove concat manifest failed", logging.Error(err))
		}
	}()

	inputArgs := []string{"-f", "concat", "-safe", "0", "-i", manifest}
	copyArgs := append(append([]string{}, inputArgs...), "-c", "copy", "-y", output)
	err := c.run(ctx, c.binary, copyArgs...)
	if binaryMissing(err) && c.fallback == "" {
		logging.ErrorWithContext(logger, "ffmpeg not found and no fallback configured", "stitch_failed",
			logging.String("binary", c.binary),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set media.fallback_ffmpeg_binary"),
		)
		return false
	}
	if binaryMissing(err) {
		logging.WarnWithContext(logger, "ffmpeg not found, re-encoding with fallback", "stitch_fallback",
			logging.String("binary", c.binary),
			logging.String("fallback", c.fallback),
			logging.String("preset", c.preset.Name),
			logging.String(logging.FieldImpact, "stitch is slower and re-encodes"),
		)
		encodeArgs := append(append([]string{}, inputArgs...), c.preset.Args()...)
		encodeArgs = append(encodeArgs, "-y", output)
		err = c.run(ctx, c.fallback, encodeArgs...)
	}
	if err != nil {
		logging.ErrorWithContext(logger, "ffmpeg stitch failed", "stitch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "per-beat clips remain on disk; rerun reelgen stitch"),
		)
		return false
	}

	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		logging.ErrorWithContext(logger, "stitched output missing or empty", "stitch_failed",
			logging.String("output", output),
		)
		return false
	}
	logger.Info("stitched video saved",
		logging.String("output", output),
		logging.Float64("size_mb", float64(info.Size())/(1024*1024)),
	)
	return true
}

// binaryMissing reports whether err came from starting a binary that is not
// installed, either missing from PATH or an absent explicit path.
func binaryMissing(err error) bool {
	return err != nil && (errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist))
}

func writeManifest(path string, inputs []string) error {
	var b strings.Builder
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", input, err)
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
