package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reelgen/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Platform.ProjectID = "test-project"
	cfgVal.Paths.StoryFile = filepath.Join(base, "story.json")
	cfgVal.Paths.CharactersDir = filepath.Join(base, "characters")
	cfgVal.Paths.VideosDir = filepath.Join(base, "videos")
	cfgVal.Paths.FinalOutput = filepath.Join(base, "final_reel.mp4")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPlatformURL points platform requests at a test server.
func WithPlatformURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Platform.BaseURL = url
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, filepath.Join(binDir, name), "exit 0\n")
		}
		PrependPath(b.t, binDir)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.VideosDir)
}

// WriteScript writes an executable /bin/sh script with the given body.
func WriteScript(t testing.TB, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
}

// PrependPath puts dir first on PATH for the duration of the test.
func PrependPath(t testing.TB, dir string) {
	t.Helper()
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// FakeFFmpegScript is a stub ffmpeg body that writes a few bytes to its last
// argument, which is always the output path in reelgen's invocations.
const FakeFFmpegScript = `for last; do :; done
printf 'fake-media' > "$last"
`
