package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"

	"reelgen/internal/config"
	"reelgen/internal/gcs"
	"reelgen/internal/imagegen"
	"reelgen/internal/media/ffmpeg"
	"reelgen/internal/platform"
	"reelgen/internal/reel"
	"reelgen/internal/storygen"
	"reelgen/internal/veo"
)

func newStoryGenerator(cfg *config.Config, logger *slog.Logger) *storygen.Generator {
	client := storygen.NewClient(storygen.Config{
		APIKey:         cfg.Story.APIKey,
		BaseURL:        cfg.Story.BaseURL,
		Model:          cfg.Story.Model,
		TimeoutSeconds: cfg.Story.TimeoutSeconds,
	})
	return storygen.NewGenerator(client,
		storygen.WithTemperature(cfg.Story.Temperature),
		storygen.WithLogger(logger),
	)
}

func newCharacters(cfg *config.Config, pc *platform.Context, logger *slog.Logger) *imagegen.Characters {
	policy := imagegen.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Image.MaxRetries
	client := imagegen.NewClient(pc,
		imagegen.WithModel(cfg.Image.Model),
		imagegen.WithAspectRatio(cfg.Image.AspectRatio),
		imagegen.WithRetryPolicy(policy),
		imagegen.WithLogger(logger),
	)
	return imagegen.NewCharacters(client, cfg.Paths.CharactersDir,
		imagegen.WithIdentitySeed(cfg.Image.IdentitySeed),
		imagegen.WithCharactersAspect(cfg.Image.AspectRatio),
		imagegen.WithCharactersLogger(logger),
	)
}

// newBeatRunner wires the video client, frame extractor and optional bucket
// fetcher behind one runner.
func newBeatRunner(ctx context.Context, cfg *config.Config, pc *platform.Context, logger *slog.Logger) (*reel.BeatRunner, error) {
	client := veo.NewClient(pc, veo.WithModel(cfg.Video.Model), veo.WithLogger(logger))
	frames := ffmpeg.NewTool(cfg.Media.FFmpegBinary, ffmpeg.WithToolLogger(logger))

	opts := []reel.BeatOption{
		reel.WithBeatLogger(logger),
		reel.WithGenerateAudio(cfg.Video.GenerateAudio),
		reel.WithStorageURI(cfg.Video.StorageURI),
		reel.WithPollOptions(veo.PollOptions{
			Timeout:  time.Duration(cfg.Video.PollTimeoutSeconds) * time.Second,
			Interval: time.Duration(cfg.Video.PollIntervalSeconds) * time.Second,
		}),
	}
	if cfg.Video.DownloadRemote {
		fetcher, err := gcs.New(ctx, logger, option.WithTokenSource(pc.TokenSource(ctx)))
		if err != nil {
			return nil, fmt.Errorf("storage client: %w", err)
		}
		opts = append(opts, reel.WithRemoteFetcher(fetcher))
	}
	return reel.NewBeatRunner(client, frames, opts...), nil
}

func newConcatenator(cfg *config.Config, logger *slog.Logger) (*ffmpeg.Concatenator, error) {
	preset, err := ffmpeg.ResolvePreset(cfg.Media.ReencodePreset, cfg.Media.ReencodePresetFile)
	if err != nil {
		return nil, fmt.Errorf("re-encode preset: %w", err)
	}
	return ffmpeg.NewConcatenator(ffmpeg.ConcatConfig{
		Binary:         cfg.Media.FFmpegBinary,
		FallbackBinary: cfg.Media.FallbackFFmpegBinary,
		Preset:         preset,
	}, ffmpeg.WithConcatLogger(logger)), nil
}
