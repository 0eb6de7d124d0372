package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizePlatform(); err != nil {
		return err
	}
	if err := c.normalizeVideo(); err != nil {
		return err
	}
	if err := c.normalizeImage(); err != nil {
		return err
	}
	c.normalizeStory()
	if err := c.normalizeMedia(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	overrideFromEnv(&c.Paths.StoryFile, "STORY_PATH", "STORY_OUTPUT")
	overrideFromEnv(&c.Paths.CharactersDir, "CHARACTERS_DIR")
	overrideFromEnv(&c.Paths.VideosDir, "VIDEOS_DIR", "OUTPUT_DIR")
	overrideFromEnv(&c.Paths.FinalOutput, "FINAL_OUTPUT")

	fields := []struct {
		name  string
		value *string
		def   string
	}{
		{"paths.story_file", &c.Paths.StoryFile, defaultStoryFile},
		{"paths.characters_dir", &c.Paths.CharactersDir, defaultCharactersDir},
		{"paths.videos_dir", &c.Paths.VideosDir, defaultVideosDir},
		{"paths.final_output", &c.Paths.FinalOutput, defaultFinalOutput},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizePlatform() error {
	c.Platform.ProjectID = strings.TrimSpace(c.Platform.ProjectID)
	if c.Platform.ProjectID == "" {
		c.Platform.ProjectID = firstEnv("GOOGLE_CLOUD_PROJECT", "GCP_PROJECT", "GCLOUD_PROJECT")
	}
	if value := firstEnv("GOOGLE_CLOUD_LOCATION"); value != "" {
		c.Platform.Location = value
	}
	c.Platform.Location = strings.TrimSpace(c.Platform.Location)
	if c.Platform.Location == "" {
		c.Platform.Location = defaultLocation
	}
	if value := firstEnv("GOOGLE_APPLICATION_CREDENTIALS"); value != "" {
		c.Platform.CredentialsFile = value
	}
	c.Platform.CredentialsFile = strings.TrimSpace(c.Platform.CredentialsFile)
	if c.Platform.CredentialsFile != "" {
		expanded, err := expandPath(c.Platform.CredentialsFile)
		if err != nil {
			return fmt.Errorf("platform.credentials_file: %w", err)
		}
		c.Platform.CredentialsFile = expanded
	}
	c.Platform.BaseURL = strings.TrimRight(strings.TrimSpace(c.Platform.BaseURL), "/")
	return nil
}

func (c *Config) normalizeVideo() error {
	overrideFromEnv(&c.Video.Model, "VIDEO_MODEL")
	overrideFromEnv(&c.Video.AspectRatio, "ASPECT_RATIO")
	c.Video.Model = strings.TrimSpace(c.Video.Model)
	if c.Video.Model == "" {
		c.Video.Model = defaultVideoModel
	}
	c.Video.AspectRatio = strings.TrimSpace(c.Video.AspectRatio)
	if c.Video.AspectRatio == "" {
		c.Video.AspectRatio = defaultAspectRatio
	}
	c.Video.StorageURI = strings.TrimSpace(c.Video.StorageURI)
	return nil
}

func (c *Config) normalizeImage() error {
	if value := firstEnv("IDENTITY_SEED"); value != "" {
		seed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("IDENTITY_SEED: %w", err)
		}
		c.Image.IdentitySeed = seed
	}
	c.Image.Model = strings.TrimSpace(c.Image.Model)
	if c.Image.Model == "" {
		c.Image.Model = defaultImageModel
	}
	c.Image.AspectRatio = strings.TrimSpace(c.Image.AspectRatio)
	if c.Image.AspectRatio == "" {
		c.Image.AspectRatio = c.Video.AspectRatio
	}
	return nil
}

func (c *Config) normalizeStory() {
	if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.Story.APIKey = strings.TrimSpace(value)
	}
	c.Story.BaseURL = strings.TrimSpace(c.Story.BaseURL)
	if c.Story.BaseURL == "" {
		c.Story.BaseURL = defaultStoryBaseURL
	}
	c.Story.Model = strings.TrimSpace(c.Story.Model)
	if c.Story.Model == "" {
		c.Story.Model = defaultStoryModel
	}
	overrideFromEnv(&c.Story.DefaultTheme, "THEME")
	c.Story.DefaultTheme = strings.TrimSpace(c.Story.DefaultTheme)
	if value := firstEnv("DURATION"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			c.Story.DefaultDuration = parsed
		}
	}
}

func (c *Config) normalizeMedia() error {
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FallbackFFmpegBinary = strings.TrimSpace(c.Media.FallbackFFmpegBinary)
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	c.Media.ReencodePreset = strings.ToLower(strings.TrimSpace(c.Media.ReencodePreset))
	if c.Media.ReencodePreset == "" {
		c.Media.ReencodePreset = defaultReencodePreset
	}
	c.Media.ReencodePresetFile = strings.TrimSpace(c.Media.ReencodePresetFile)
	if c.Media.ReencodePresetFile != "" {
		expanded, err := expandPath(c.Media.ReencodePresetFile)
		if err != nil {
			return fmt.Errorf("media.reencode_preset_file: %w", err)
		}
		c.Media.ReencodePresetFile = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func overrideFromEnv(target *string, keys ...string) {
	if value := firstEnv(keys...); value != "" {
		*target = value
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
