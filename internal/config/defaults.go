package config

const (
	defaultStoryFile            = "story.json"
	defaultCharactersDir        = "characters"
	defaultVideosDir            = "videos"
	defaultFinalOutput          = "final_reel.mp4"
	defaultStateDir             = "~/.local/share/reelgen"
	defaultLogDir               = "~/.local/share/reelgen/logs"
	defaultLocation             = "us-central1"
	defaultPlatformTimeout      = 120
	defaultVideoModel           = "veo-3.0-generate-001"
	defaultAspectRatio          = "9:16"
	defaultPollTimeoutSeconds   = 1800
	defaultPollIntervalSeconds  = 10
	defaultImageModel           = "imagegeneration@005"
	defaultIdentitySeed         = 1337
	defaultImageMaxRetries      = 2
	defaultStoryBaseURL         = "https://api.openai.com/v1/chat/completions"
	defaultStoryModel           = "gpt-4o-mini"
	defaultStoryTemperature     = 0.7
	defaultStoryTimeoutSeconds  = 60
	defaultStoryTheme           = "auto"
	defaultStoryDuration        = 45
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultReencodePreset       = "reel_h264"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StoryFile:     defaultStoryFile,
			CharactersDir: defaultCharactersDir,
			VideosDir:     defaultVideosDir,
			FinalOutput:   defaultFinalOutput,
			StateDir:      defaultStateDir,
			LogDir:        defaultLogDir,
		},
		Platform: Platform{
			Location:       defaultLocation,
			RequestTimeout: defaultPlatformTimeout,
		},
		Video: Video{
			Model:               defaultVideoModel,
			AspectRatio:         defaultAspectRatio,
			PollTimeoutSeconds:  defaultPollTimeoutSeconds,
			PollIntervalSeconds: defaultPollIntervalSeconds,
		},
		Image: Image{
			Model:        defaultImageModel,
			AspectRatio:  defaultAspectRatio,
			IdentitySeed: defaultIdentitySeed,
			MaxRetries:   defaultImageMaxRetries,
		},
		Story: Story{
			BaseURL:         defaultStoryBaseURL,
			Model:           defaultStoryModel,
			Temperature:     defaultStoryTemperature,
			TimeoutSeconds:  defaultStoryTimeoutSeconds,
			DefaultTheme:    defaultStoryTheme,
			DefaultDuration: defaultStoryDuration,
		},
		Media: Media{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			ReencodePreset: defaultReencodePreset,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
