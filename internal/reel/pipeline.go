package reel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"reelgen/internal/logging"
	"reelgen/internal/services"
)

// Runner renders a single beat.
type Runner interface {
	Run(ctx context.Context, req BeatRequest) BeatOutcome
}

// Recorder persists beat outcomes.
type Recorder interface {
	RecordBeat(ctx context.Context, outcome BeatOutcome) error
}

// Status summarises a whole run.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
)

// ExitCode maps a status to the process exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusComplete:
		return 0
	case StatusPartial:
		return 2
	default:
		return 1
	}
}

// Result lists what a run produced. Videos are in beat order.
type Result struct {
	Videos    []string
	Succeeded []int
	Failed    []int
	Outcomes  []BeatOutcome
}

// Status reports complete when every beat produced a clip, partial when some
// did and failed when none did.
func (r Result) Status() Status {
	switch {
	case len(r.Succeeded) == 0:
		return StatusFailed
	case len(r.Failed) == 0:
		return StatusComplete
	default:
		return StatusPartial
	}
}

// PipelineConfig locates inputs and outputs for a run.
type PipelineConfig struct {
	CharactersDir string
	VideosDir     string
	AspectRatio   string
	Model         string
}

// Pipeline walks a story beat by beat, threading the continuity frame.
type Pipeline struct {
	runner   Runner
	cfg      PipelineConfig
	recorder Recorder
	logger   *slog.Logger
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithRecorder stores each outcome as it completes.
func WithRecorder(recorder Recorder) PipelineOption {
	return func(p *Pipeline) {
		p.recorder = recorder
	}
}

// WithPipelineLogger sets the pipeline logger.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline builds a pipeline around runner.
func NewPipeline(runner Runner, cfg PipelineConfig, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{runner: runner, cfg: cfg, logger: logging.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = logging.NewComponentLogger(p.logger, "pipeline")
	return p
}

// RunFile loads the story at path and runs it.
func (p *Pipeline) RunFile(ctx context.Context, path string) (Result, error) {
	story, err := LoadStory(path)
	if err != nil {
		return Result{}, err
	}
	return p.Run(ctx, story)
}

// Run renders every beat in id order. It returns an error only when the story
// is unusable, the context ends or credentials are rejected; individual beat
// failures are reported through the result.
func (p *Pipeline) Run(ctx context.Context, story Story) (Result, error) {
	if err := story.Validate(); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(p.cfg.VideosDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "pipeline", "prepare", "create videos directory", err)
	}

	logger := logging.WithContext(ctx, p.logger)
	if drift := story.DurationDrift(); drift != 0 {
		logging.WarnWithContext(logger, "beat durations do not match story total", "duration_drift",
			logging.Int("total_duration", story.TotalDuration),
			logging.Int("drift_seconds", drift),
			logging.String(logging.FieldImpact, "final reel length differs from the requested total"),
		)
	}
	logger.Info("starting story",
		logging.String("theme", story.Theme),
		logging.Int("beats", len(story.Beats)),
		logging.Int("total_duration", story.TotalDuration),
	)

	var (
		result     Result
		continuity string
	)
	for _, beat := range story.Beats {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		reference := CharacterImagePath(p.cfg.CharactersDir, beat.ID)
		if !fileExists(reference) {
			if beat.ID == 1 {
				outcome := BeatOutcome{
					BeatID:          beat.ID,
					DurationSeconds: BucketDuration(beat.Duration),
					Seed:            SeedNone,
					Reason:          ReasonMissingReference,
					Err:             services.Wrap(services.ErrNotFound, "pipeline", "reference", reference, nil),
				}
				logging.WarnWithContext(logging.WithContext(services.WithBeatID(ctx, beat.ID), p.logger),
					"beat 1 has no character image", "missing_reference",
					logging.String("image", reference),
					logging.String(logging.FieldErrorHint, "generate characters with reelgen run or place the portrait manually"),
					logging.String(logging.FieldImpact, "beat skipped"),
				)
				p.collect(ctx, &result, outcome)
				continue
			}
			reference = ""
		}

		outcome := p.runner.Run(ctx, BeatRequest{
			Beat:            beat,
			ReferenceImage:  reference,
			ContinuityFrame: continuity,
			Setting:         story.Setting,
			Style:           story.CinematicStyle,
			OutputPath:      ClipPath(p.cfg.VideosDir, beat.ID),
			AspectRatio:     p.cfg.AspectRatio,
			Model:           p.cfg.Model,
		})
		p.collect(ctx, &result, outcome)
		if outcome.Fatal() {
			return result, outcome.Err
		}
		if outcome.Success {
			continuity = outcome.ContinuityFrame
		}
	}

	logger.Info("story finished",
		logging.String("status", string(result.Status())),
		logging.Int("succeeded", len(result.Succeeded)),
		logging.Int("failed", len(result.Failed)),
		logging.String("failed_beats", joinInts(result.Failed)),
	)
	return result, nil
}

func (p *Pipeline) collect(ctx context.Context, result *Result, outcome BeatOutcome) {
	result.Outcomes = append(result.Outcomes, outcome)
	if outcome.Success {
		result.Videos = append(result.Videos, outcome.Video)
		result.Succeeded = append(result.Succeeded, outcome.BeatID)
	} else {
		result.Failed = append(result.Failed, outcome.BeatID)
	}
	if p.recorder == nil {
		return
	}
	if err := p.recorder.RecordBeat(ctx, outcome); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "failed to record beat", "ledger_write_failed",
			logging.Int(logging.FieldBeatID, outcome.BeatID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run history incomplete"),
		)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, ",")
}
