package reel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"reelgen/internal/fileutil"
	"reelgen/internal/logging"
	"reelgen/internal/media/ffmpeg"
	"reelgen/internal/services"
	"reelgen/internal/veo"
)

// VideoClient is the subset of the video job client a beat needs.
type VideoClient interface {
	Submit(ctx context.Context, req veo.SubmitRequest) (veo.Operation, error)
	Poll(ctx context.Context, op veo.Operation, opts veo.PollOptions) (veo.Operation, error)
	Extract(op veo.Operation) (veo.Artifact, veo.Outcome, error)
}

// FrameExtractor captures the final frame of a clip.
type FrameExtractor interface {
	ExtractLastFrame(ctx context.Context, videoPath, framePath string) error
}

// RemoteFetcher downloads a clip the platform stored in a bucket.
type RemoteFetcher interface {
	Fetch(ctx context.Context, uri, dest string) (int64, error)
}

// Seed kinds recorded for each beat.
const (
	SeedContinuity = "continuity"
	SeedReference  = "reference"
	SeedNone       = "none"
)

// Failure reasons that do not come from an error.
const (
	ReasonFiltered         = "filtered"
	ReasonEmpty            = "empty"
	ReasonRemoteOnly       = "remote_only"
	ReasonMissingReference = "missing_reference"
)

// BeatRequest describes one beat to render.
type BeatRequest struct {
	Beat            Beat
	ReferenceImage  string
	ContinuityFrame string
	Setting         string
	Style           string
	OutputPath      string
	AspectRatio     string
	Model           string
}

// BeatOutcome is the result of one beat. Video and ContinuityFrame are set
// only when the beat succeeded.
type BeatOutcome struct {
	BeatID          int
	Success         bool
	Video           string
	ContinuityFrame string
	Seed            string
	Operation       string
	DurationSeconds int
	RemoteURI       string
	Reason          string
	Err             error
	Elapsed         time.Duration
}

// Fatal reports whether the failure must stop the whole run.
func (o BeatOutcome) Fatal() bool {
	return services.IsFatal(o.Err)
}

// BeatRunner renders a single beat: submit, wait, save, capture last frame.
type BeatRunner struct {
	client        VideoClient
	frames        FrameExtractor
	fetcher       RemoteFetcher
	poll          veo.PollOptions
	generateAudio bool
	storageURI    string
	logger        *slog.Logger
	now           func() time.Time
}

// BeatOption customizes a BeatRunner.
type BeatOption func(*BeatRunner)

// WithRemoteFetcher enables downloading bucket-stored clips.
func WithRemoteFetcher(fetcher RemoteFetcher) BeatOption {
	return func(r *BeatRunner) {
		r.fetcher = fetcher
	}
}

// WithPollOptions overrides the poll budget.
func WithPollOptions(opts veo.PollOptions) BeatOption {
	return func(r *BeatRunner) {
		r.poll = opts
	}
}

// WithGenerateAudio toggles audio in generated clips.
func WithGenerateAudio(enabled bool) BeatOption {
	return func(r *BeatRunner) {
		r.generateAudio = enabled
	}
}

// WithStorageURI asks the platform to write clips under a bucket prefix.
func WithStorageURI(uri string) BeatOption {
	return func(r *BeatRunner) {
		r.storageURI = strings.TrimSpace(uri)
	}
}

// WithBeatLogger sets the runner logger.
func WithBeatLogger(logger *slog.Logger) BeatOption {
	return func(r *BeatRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBeatClock replaces the clock used for elapsed times.
func WithBeatClock(now func() time.Time) BeatOption {
	return func(r *BeatRunner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewBeatRunner constructs a runner around a video client and frame tool.
func NewBeatRunner(client VideoClient, frames FrameExtractor, opts ...BeatOption) *BeatRunner {
	r := &BeatRunner{
		client: client,
		frames: frames,
		poll:   veo.PollOptions{Timeout: veo.DefaultPollTimeout, Interval: veo.DefaultPollInterval},
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.logger = logging.NewComponentLogger(r.logger, "beat")
	return r
}

// Run renders req and never panics on remote failures; every failure is
// reported through the outcome.
func (r *BeatRunner) Run(ctx context.Context, req BeatRequest) BeatOutcome {
	start := r.now()
	ctx = services.WithBeatID(ctx, req.Beat.ID)
	outcome := BeatOutcome{BeatID: req.Beat.ID, DurationSeconds: BucketDuration(req.Beat.Duration)}
	finish := func(o BeatOutcome) BeatOutcome {
		o.Elapsed = r.now().Sub(start)
		return o
	}

	seedCtx := services.WithStage(ctx, "seed")
	image, mime, seed := r.selectSeed(seedCtx, req)
	outcome.Seed = seed

	submitCtx := services.WithStage(ctx, "submit")
	logger := logging.WithContext(submitCtx, r.logger)
	logger.Info("starting beat",
		logging.String("action", req.Beat.CharacterAction),
		logging.Int("requested_seconds", req.Beat.Duration),
		logging.Int("duration_seconds", outcome.DurationSeconds),
		logging.String("seed", seed),
	)
	op, err := r.client.Submit(submitCtx, veo.SubmitRequest{
		Model:           req.Model,
		Prompt:          BuildPrompt(req.Beat.CharacterAction, req.Setting, req.Style),
		SeedImage:       image,
		SeedMIMEType:    mime,
		DurationSeconds: outcome.DurationSeconds,
		AspectRatio:     req.AspectRatio,
		GenerateAudio:   r.generateAudio,
		StorageURI:      r.storageURI,
	})
	if err != nil {
		return finish(r.fail(submitCtx, outcome, err))
	}
	outcome.Operation = op.Name

	if !op.Done {
		pollCtx := services.WithStage(ctx, "poll")
		op, err = r.client.Poll(pollCtx, op, r.poll)
		if err != nil {
			return finish(r.fail(pollCtx, outcome, err))
		}
	}

	saveCtx := services.WithStage(ctx, "save")
	artifact, result, err := r.client.Extract(op)
	if err != nil {
		return finish(r.fail(saveCtx, outcome, err))
	}
	switch result.Kind {
	case veo.OutcomeFiltered:
		outcome.Reason = ReasonFiltered
		return finish(outcome)
	case veo.OutcomeEmpty:
		outcome.Reason = ReasonEmpty
		return finish(outcome)
	}

	switch {
	case artifact.Inline():
		if err := fileutil.WriteFileAtomic(req.OutputPath, artifact.Data, 0o644); err != nil {
			return finish(r.fail(saveCtx, outcome, services.Wrap(services.ErrTransient, "save", "write clip", req.OutputPath, err)))
		}
	case artifact.Reference():
		outcome.RemoteURI = artifact.URI
		if r.fetcher == nil {
			logging.WarnWithContext(logging.WithContext(saveCtx, r.logger), "clip stored remotely and download is disabled", "remote_only",
				logging.String("uri", artifact.URI),
				logging.String(logging.FieldErrorHint, "set video.download_remote = true to fetch bucket clips"),
				logging.String(logging.FieldImpact, "beat produces no local clip"),
			)
			outcome.Reason = ReasonRemoteOnly
			return finish(outcome)
		}
		if _, err := r.fetcher.Fetch(saveCtx, artifact.URI, req.OutputPath); err != nil {
			return finish(r.fail(saveCtx, outcome, err))
		}
	default:
		outcome.Reason = ReasonEmpty
		return finish(outcome)
	}

	outcome.Success = true
	outcome.Video = req.OutputPath
	logging.WithContext(saveCtx, r.logger).Info("clip saved", logging.String("path", req.OutputPath))

	frameCtx := services.WithStage(ctx, "frame")
	framePath := ffmpeg.LastFramePath(req.OutputPath)
	if r.frames == nil {
		return finish(outcome)
	}
	if err := r.frames.ExtractLastFrame(frameCtx, req.OutputPath, framePath); err != nil {
		logging.WarnWithContext(logging.WithContext(frameCtx, r.logger), "continuity frame unavailable", "frame_extract_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ffmpeg binary and the clip contents"),
			logging.String(logging.FieldImpact, "next beat falls back to its character reference"),
		)
		return finish(outcome)
	}
	outcome.ContinuityFrame = framePath
	return finish(outcome)
}

// selectSeed prefers the continuity frame, then the character reference.
func (r *BeatRunner) selectSeed(ctx context.Context, req BeatRequest) ([]byte, string, string) {
	logger := logging.WithContext(ctx, r.logger)
	if path := strings.TrimSpace(req.ContinuityFrame); path != "" {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			logger.Info("seeding from previous clip", logging.String("frame", path))
			return data, sniffImage(data), SeedContinuity
		}
		logging.WarnWithContext(logger, "continuity frame unreadable", "seed_unreadable",
			logging.String("frame", path),
			logging.Error(errOrEmpty(err)),
			logging.String(logging.FieldImpact, "falling back to character reference"),
		)
	}
	if path := strings.TrimSpace(req.ReferenceImage); path != "" {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			logger.Info("seeding from character reference", logging.String("image", path))
			return data, sniffImage(data), SeedReference
		}
		logging.WarnWithContext(logger, "character reference unreadable", "seed_unreadable",
			logging.String("image", path),
			logging.Error(errOrEmpty(err)),
			logging.String(logging.FieldImpact, "beat generated from text only"),
		)
	}
	return nil, "", SeedNone
}

func (r *BeatRunner) fail(ctx context.Context, outcome BeatOutcome, err error) BeatOutcome {
	outcome.Err = err
	outcome.Reason = services.FailureKind(err)
	logger := logging.WithContext(ctx, r.logger)
	if outcome.Fatal() {
		logging.ErrorWithContext(logger, "credentials rejected", "auth_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check GOOGLE_APPLICATION_CREDENTIALS or run gcloud auth application-default login"),
			logging.String(logging.FieldImpact, "run aborted"),
		)
		return outcome
	}
	logging.WarnWithContext(logger, "beat failed", "beat_failed",
		logging.String("reason", outcome.Reason),
		logging.Error(err),
		logging.String(logging.FieldImpact, "beat skipped; continuity frame unchanged"),
	)
	return outcome
}

func sniffImage(data []byte) string {
	mime := http.DetectContentType(data)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return "image/png"
}

func errOrEmpty(err error) error {
	if err != nil {
		return err
	}
	return errors.New("file is empty")
}

// String renders a one-line summary.
func (o BeatOutcome) String() string {
	if o.Success {
		return fmt.Sprintf("beat %d ok (%s seed, %ds)", o.BeatID, o.Seed, o.DurationSeconds)
	}
	return fmt.Sprintf("beat %d failed: %s", o.BeatID, o.Reason)
}
