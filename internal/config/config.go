package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the on-disk layout for a reel run.
type Paths struct {
	StoryFile     string `toml:"story_file"`
	CharactersDir string `toml:"characters_dir"`
	VideosDir     string `toml:"videos_dir"`
	FinalOutput   string `toml:"final_output"`
	StateDir      string `toml:"state_dir"`
	LogDir        string `toml:"log_dir"`
}

// Platform contains connection settings for the remote generation platform.
type Platform struct {
	ProjectID       string `toml:"project_id"`
	Location        string `toml:"location"`
	CredentialsFile string `toml:"credentials_file"`
	// BaseURL overrides the regional endpoint (tests and proxies).
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Video contains settings for the asynchronous video generation stage.
type Video struct {
	Model               string `toml:"model"`
	AspectRatio         string `toml:"aspect_ratio"`
	GenerateAudio       bool   `toml:"generate_audio"`
	StorageURI          string `toml:"storage_uri"`
	PollTimeoutSeconds  int    `toml:"poll_timeout_seconds"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	// DownloadRemote fetches artifacts returned as storage references instead
	// of treating them as unavailable.
	DownloadRemote bool `toml:"download_remote"`
}

// Image contains settings for character reference generation.
type Image struct {
	Model        string `toml:"model"`
	AspectRatio  string `toml:"aspect_ratio"`
	IdentitySeed int    `toml:"identity_seed"`
	MaxRetries   int    `toml:"max_retries"`
}

// Story contains the LLM settings used to draft story outlines.
type Story struct {
	APIKey          string  `toml:"api_key"`
	BaseURL         string  `toml:"base_url"`
	Model           string  `toml:"model"`
	Temperature     float64 `toml:"temperature"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	DefaultTheme    string  `toml:"default_theme"`
	DefaultDuration int     `toml:"default_duration"`
}

// Media contains external media tool settings.
type Media struct {
	FFmpegBinary         string `toml:"ffmpeg_binary"`
	FallbackFFmpegBinary string `toml:"fallback_ffmpeg_binary"`
	FFprobeBinary        string `toml:"ffprobe_binary"`
	ReencodePresetFile   string `toml:"reencode_preset_file"`
	ReencodePreset       string `toml:"reencode_preset"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelgen.
//
// Configuration sections by subsystem:
//   - Paths: story, character, clip and state locations
//   - Platform: project, region and credentials for the generation platform
//   - Video: model, aspect ratio and polling budget for clip generation
//   - Image: character reference generation
//   - Story: LLM used to draft the story outline
//   - Media: ffmpeg/ffprobe binaries and the re-encode preset
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Platform      Platform      `toml:"platform"`
	Video         Video         `toml:"video"`
	Image         Image         `toml:"image"`
	Story         Story         `toml:"story"`
	Media         Media         `toml:"media"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelgen/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelgen.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CharactersDir, c.Paths.VideosDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if parent := filepath.Dir(c.Paths.FinalOutput); parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", parent, err)
		}
	}
	return nil
}

// RequirePlatform reports whether the generation platform is configured well
// enough to issue requests. Only commands that talk to the platform call it.
func (c *Config) RequirePlatform() error {
	if strings.TrimSpace(c.Platform.ProjectID) == "" {
		return errors.New("platform.project_id is required. Set GOOGLE_CLOUD_PROJECT or edit the config file (create with 'reelgen config init')")
	}
	if strings.TrimSpace(c.Platform.Location) == "" {
		return errors.New("platform.location is required")
	}
	return nil
}

// LedgerPath returns the SQLite run history location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
