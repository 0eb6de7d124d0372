package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelgen/internal/config"
	"reelgen/internal/ledger"
	"reelgen/internal/logging"
	"reelgen/internal/media/ffprobe"
	"reelgen/internal/notifications"
	"reelgen/internal/reel"
	"reelgen/internal/runlock"
	"reelgen/internal/services"
)

// stages selects which parts of the workflow run. Skipped stages reuse
// whatever a previous run left on disk.
type stages struct {
	story      bool
	characters bool
	videos     bool
	stitch     bool
}

type workflowOptions struct {
	command  string
	theme    string
	duration int
	stages   stages
}

type workflowReport struct {
	RunID       string
	Status      reel.Status
	Story       reel.Story
	Result      reel.Result
	Clips       []string
	FinalOutput string
	Probe       *ffprobe.Summary
	Elapsed     time.Duration
}

// runWorkflow executes the selected stages under the videos-directory lock
// and records the run in the ledger.
func runWorkflow(ctx context.Context, c *commandContext, opts workflowOptions, out io.Writer) (workflowReport, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return workflowReport{}, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return workflowReport{}, err
	}

	lock, err := runlock.Acquire(cfg.Paths.VideosDir)
	if err != nil {
		return workflowReport{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Debug("release run lock failed", logging.Error(err))
		}
	}()

	store, err := ledger.Open(cfg)
	if err != nil {
		return workflowReport{}, fmt.Errorf("open run ledger: %w", err)
	}
	defer store.Close()
	if n, err := store.MarkInterrupted(ctx); err != nil {
		logger.Debug("mark interrupted runs failed", logging.Error(err))
	} else if n > 0 {
		logging.WarnWithContext(logger, "previous runs did not finish", "runs_interrupted",
			logging.Int64("runs", n),
			logging.String(logging.FieldImpact, "marked failed in history"),
		)
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "workflow"))
	start := time.Now()
	if err := store.StartRun(ctx, ledger.Run{
		ID:        runID,
		Command:   opts.command,
		StoryPath: cfg.Paths.StoryFile,
		StartedAt: start,
	}); err != nil {
		return workflowReport{}, err
	}

	w := &workflow{runID: runID, cfg: cfg, cmd: c, store: store, logger: logger, opts: opts}
	report, runErr := w.execute(ctx)
	report.RunID = runID
	report.Elapsed = time.Since(start)
	if runErr != nil {
		report.Status = reel.StatusFailed
	}

	finishCtx := context.WithoutCancel(ctx)
	if err := store.FinishRun(finishCtx, runID, string(report.Status), report.FinalOutput, runErr); err != nil {
		logger.Warn("record run result failed", logging.Error(err))
	}
	notifyRun(finishCtx, notifications.NewService(cfg), logger, report, runErr)
	printReport(out, report)
	if runErr != nil {
		return report, runErr
	}
	if code := report.Status.ExitCode(); code != 0 {
		message := fmt.Sprintf("run %s: no clips to stitch in %s", report.Status, cfg.Paths.VideosDir)
		if total := len(report.Result.Succeeded) + len(report.Result.Failed); total > 0 {
			message = fmt.Sprintf("run %s: %d of %d beats rendered", report.Status, len(report.Result.Succeeded), total)
		}
		return report, &runStatusError{code: code, message: message}
	}
	return report, nil
}

type workflow struct {
	runID  string
	cfg    *config.Config
	cmd    *commandContext
	store  *ledger.Store
	logger *slog.Logger
	opts   workflowOptions
}

func (w *workflow) execute(ctx context.Context) (workflowReport, error) {
	var report workflowReport

	story, err := w.story(services.WithStage(ctx, "story"))
	if err != nil {
		return report, err
	}
	report.Story = story
	if story.Theme != "" {
		if err := w.store.SetTheme(ctx, w.runID, story.Theme); err != nil {
			w.logger.Debug("record theme failed", logging.Error(err))
		}
	}

	if w.opts.stages.characters {
		if err := w.characters(services.WithStage(ctx, "characters"), story); err != nil {
			return report, err
		}
	}

	if w.opts.stages.videos {
		result, err := w.videos(services.WithStage(ctx, "videos"), story)
		report.Result = result
		report.Clips = result.Videos
		report.Status = result.Status()
		if err != nil {
			return report, err
		}
	} else {
		clips, err := reel.ExistingClips(w.cfg.Paths.VideosDir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return report, fmt.Errorf("list clips: %w", err)
		}
		report.Clips = clips
		report.Status = reel.StatusComplete
		if len(clips) == 0 {
			report.Status = reel.StatusFailed
		}
	}

	if !w.opts.stages.stitch || len(report.Clips) == 0 {
		return report, nil
	}
	output, probe, err := stitchClips(services.WithStage(ctx, "stitch"), w.cfg, w.logger, report.Clips, w.cfg.Paths.FinalOutput)
	if err != nil {
		return report, err
	}
	report.FinalOutput = output
	report.Probe = probe
	return report, nil
}

func (w *workflow) story(ctx context.Context) (reel.Story, error) {
	path := w.cfg.Paths.StoryFile
	if !w.opts.stages.story {
		story, err := reel.LoadStory(path)
		if err != nil && (w.opts.stages.characters || w.opts.stages.videos) {
			return reel.Story{}, err
		}
		return story, nil
	}

	theme := strings.TrimSpace(w.opts.theme)
	if theme == "" {
		theme = w.cfg.Story.DefaultTheme
	}
	duration := w.opts.duration
	if duration <= 0 {
		duration = w.cfg.Story.DefaultDuration
	}
	story, err := newStoryGenerator(w.cfg, w.logger).Generate(ctx, theme, duration)
	if err != nil {
		return reel.Story{}, err
	}
	if err := reel.SaveStory(path, story); err != nil {
		return reel.Story{}, err
	}
	w.logger.Info("story saved", logging.String("path", path), logging.Int("beats", len(story.Beats)))
	return story, nil
}

func (w *workflow) characters(ctx context.Context, story reel.Story) error {
	pc, err := w.cmd.ensurePlatform()
	if err != nil {
		return err
	}
	_, err = newCharacters(w.cfg, pc, w.logger).GenerateMinimal(ctx, story)
	return err
}

func (w *workflow) videos(ctx context.Context, story reel.Story) (reel.Result, error) {
	pc, err := w.cmd.ensurePlatform()
	if err != nil {
		return reel.Result{}, err
	}
	runner, err := newBeatRunner(ctx, w.cfg, pc, w.logger)
	if err != nil {
		return reel.Result{}, err
	}
	pipeline := reel.NewPipeline(runner, reel.PipelineConfig{
		CharactersDir: w.cfg.Paths.CharactersDir,
		VideosDir:     w.cfg.Paths.VideosDir,
		AspectRatio:   w.cfg.Video.AspectRatio,
		Model:         w.cfg.Video.Model,
	}, reel.WithRecorder(w.store), reel.WithPipelineLogger(w.logger))
	return pipeline.Run(ctx, story)
}

// stitchClips joins clips into output and summarizes the result when ffprobe
// is available.
func stitchClips(ctx context.Context, cfg *config.Config, logger *slog.Logger, clips []string, output string) (string, *ffprobe.Summary, error) {
	concat, err := newConcatenator(cfg, logger)
	if err != nil {
		return "", nil, err
	}
	if !concat.Concat(ctx, clips, output) {
		return "", nil, services.Wrap(services.ErrExternalTool, "stitch", "concat",
			fmt.Sprintf("could not join %d clips; they remain in %s", len(clips), cfg.Paths.VideosDir), nil)
	}
	summary, err := ffprobe.Probe(ctx, cfg.Media.FFprobeBinary, output)
	if err != nil {
		logger.Debug("probe final reel failed", logging.Error(err))
		return output, nil, nil
	}
	return output, &summary, nil
}

func notifyRun(ctx context.Context, notifier notifications.Service, logger *slog.Logger, report workflowReport, runErr error) {
	var err error
	switch {
	case errors.Is(runErr, context.Canceled):
		return
	case runErr != nil:
		err = notifier.NotifyError(ctx, runErr, "reel run "+report.RunID)
	default:
		err = notifier.NotifyRunCompleted(ctx, notifications.RunSummary{
			RunID:       report.RunID,
			Theme:       report.Story.Theme,
			Status:      string(report.Status),
			Succeeded:   len(report.Clips),
			Failed:      len(report.Result.Failed),
			FinalOutput: report.FinalOutput,
			Duration:    report.Elapsed,
		})
	}
	if err != nil {
		logging.WarnWithContext(logger, "notification failed", "notify_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run result not pushed"),
		)
	}
}

func printReport(out io.Writer, report workflowReport) {
	fmt.Fprintf(out, "Run:      %s\n", report.RunID)
	fmt.Fprintf(out, "Status:   %s\n", report.Status)
	if report.Story.Theme != "" {
		fmt.Fprintf(out, "Theme:    %s\n", notifications.DisplayTheme(report.Story.Theme))
	}
	if total := len(report.Result.Succeeded) + len(report.Result.Failed); total > 0 {
		fmt.Fprintf(out, "Beats:    %d of %d rendered\n", len(report.Result.Succeeded), total)
		for _, outcome := range report.Result.Outcomes {
			if !outcome.Success {
				fmt.Fprintf(out, "  beat %d failed (%s)\n", outcome.BeatID, outcome.Reason)
			}
		}
	} else {
		fmt.Fprintf(out, "Clips:    %d\n", len(report.Clips))
	}
	if report.FinalOutput != "" {
		fmt.Fprintf(out, "Output:   %s\n", report.FinalOutput)
	}
	if report.Probe != nil {
		fmt.Fprintf(out, "Reel:     %s\n", describeProbe(*report.Probe))
	}
	fmt.Fprintf(out, "Elapsed:  %s\n", report.Elapsed.Round(time.Second))
}

func describeProbe(s ffprobe.Summary) string {
	parts := []string{fmt.Sprintf("%.1fs", s.DurationSeconds)}
	if res := s.Resolution(); res != "" {
		parts = append(parts, res)
	}
	if s.VideoCodec != "" {
		parts = append(parts, s.VideoCodec)
	}
	if s.HasAudio() {
		parts = append(parts, s.AudioCodec)
	} else {
		parts = append(parts, "no audio")
	}
	return strings.Join(parts, ", ")
}
