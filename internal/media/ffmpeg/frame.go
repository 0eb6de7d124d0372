package ffmpeg

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reelgen/internal/logging"
	"reelgen/internal/services"
)

// Tool runs single-purpose ffmpeg invocations.
type Tool struct {
	binary string
	run    CommandRunner
	logger *slog.Logger
}

// ToolOption customizes a Tool.
type ToolOption func(*Tool)

// WithToolRunner overrides command execution (useful for tests).
func WithToolRunner(run CommandRunner) ToolOption {
	return func(t *Tool) {
		if run != nil {
			t.run = run
		}
	}
}

// WithToolLogger attaches a logger.
func WithToolLogger(logger *slog.Logger) ToolOption {
	return func(t *Tool) {
		t.logger = logging.NewComponentLogger(logger, "ffmpeg")
	}
}

// NewTool returns a Tool using binary (defaults to "ffmpeg").
func NewTool(binary string, opts ...ToolOption) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	t := &Tool{binary: binary, run: defaultCommandRunner, logger: logging.NewComponentLogger(nil, "ffmpeg")}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// LastFramePath returns the continuity frame location for a clip:
// videos/beat_2.mp4 becomes videos/beat_2.last_frame.png.
func LastFramePath(videoPath string) string {
	ext := filepath.Ext(videoPath)
	return strings.TrimSuffix(videoPath, ext) + ".last_frame.png"
}

// ExtractLastFrame writes the final frame of videoPath to framePath as PNG.
func (t *Tool) ExtractLastFrame(ctx context.Context, videoPath, framePath string) error {
	if strings.TrimSpace(videoPath) == "" || strings.TrimSpace(framePath) == "" {
		return services.Wrap(services.ErrValidation, "ffmpeg", "last frame", "video and frame paths are required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(framePath), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "last frame", "create frame directory", err)
	}
	args := []string{"-sseof", "-0.1", "-i", videoPath, "-frames:v", "1", "-y", framePath}
	if err := t.run(ctx, t.binary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "last frame", "extract frame", err)
	}
	info, err := os.Stat(framePath)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "last frame", "frame not written", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "last frame", "frame is empty", nil)
	}
	t.logger.Debug("continuity frame extracted", logging.String("frame", framePath))
	return nil
}
