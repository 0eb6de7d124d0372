package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelgen/internal/ledger"
	"reelgen/internal/reel"
	"reelgen/internal/services"
	"reelgen/internal/testsupport"
)

func TestOpenAppliesMigrationsIdempotently(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	if store.Path() != cfg.LedgerPath() {
		t.Fatalf("path = %q, want %q", store.Path(), cfg.LedgerPath())
	}
	_ = store.Close()

	reopened, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected empty ledger, got %d runs", len(runs))
	}
}

func TestRunLifecycle(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := services.WithRunID(context.Background(), "run-1")

	if err := store.StartRun(ctx, ledger.Run{ID: "run-1", Command: "run", StoryPath: "story.json"}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := store.SetTheme(ctx, "run-1", "lost keys"); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	if err := store.SetTheme(ctx, "missing", "x"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("SetTheme unknown run = %v", err)
	}
	outcomes := []reel.BeatOutcome{
		{BeatID: 1, Success: true, Video: "videos/beat_1.mp4", ContinuityFrame: "videos/beat_1.last_frame.png", Seed: reel.SeedReference, Operation: "operations/1", DurationSeconds: 6, Elapsed: 1500 * time.Millisecond},
		{BeatID: 2, Reason: "submission", Err: errors.New("http 503"), Seed: reel.SeedContinuity, DurationSeconds: 4},
		{BeatID: 3, Success: true, Video: "videos/beat_3.mp4", Seed: reel.SeedContinuity, DurationSeconds: 8},
	}
	for _, outcome := range outcomes {
		if err := store.RecordBeat(ctx, outcome); err != nil {
			t.Fatalf("RecordBeat(%d): %v", outcome.BeatID, err)
		}
	}
	// Re-recording a beat replaces the earlier outcome.
	if err := store.RecordBeat(ctx, reel.BeatOutcome{BeatID: 2, Reason: "timeout", Err: errors.New("timed out")}); err != nil {
		t.Fatalf("RecordBeat replace: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", string(reel.StatusPartial), "final_reel.mp4", nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v %v", run, err)
	}
	if run.Status != "partial" || run.Succeeded != 2 || run.Failed != 1 || run.Theme != "lost keys" {
		t.Fatalf("unexpected run %+v", run)
	}
	if !run.Finished() || run.FinishedAt == nil || run.FinalOutput != "final_reel.mp4" {
		t.Fatalf("run not closed: %+v", run)
	}

	beats, err := store.Beats(ctx, "run-1")
	if err != nil {
		t.Fatalf("Beats: %v", err)
	}
	if len(beats) != 3 {
		t.Fatalf("beats = %d", len(beats))
	}
	if beats[0].Elapsed != 1500*time.Millisecond || beats[0].FramePath == "" || !beats[0].Success {
		t.Fatalf("unexpected beat 1 %+v", beats[0])
	}
	if beats[1].Reason != "timeout" || beats[1].ErrorMessage != "timed out" || beats[1].Success {
		t.Fatalf("unexpected beat 2 %+v", beats[1])
	}
}

func TestRecordBeatRequiresRunID(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	if err := store.RecordBeat(context.Background(), reel.BeatOutcome{BeatID: 1}); err == nil {
		t.Fatal("expected error without run id")
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	err := store.FinishRun(context.Background(), "missing", "complete", "", nil)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentRunsAndInterrupted(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.StartRun(ctx, ledger.Run{ID: id, Command: "videos", StartedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("StartRun(%s): %v", id, err)
		}
	}
	if err := store.FinishRun(ctx, "a", "complete", "", nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	n, err := store.MarkInterrupted(ctx)
	if err != nil {
		t.Fatalf("MarkInterrupted: %v", err)
	}
	if n != 2 {
		t.Fatalf("interrupted = %d, want 2", n)
	}

	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected order %+v", runs)
	}
	if runs[0].Status != "failed" || runs[0].ErrorMessage != "interrupted" {
		t.Fatalf("unexpected interrupted run %+v", runs[0])
	}
}
