package ledger

import (
	"time"

	"reelgen/internal/reel"
)

// RunStatusRunning marks a run that has not finished. Runs left in this
// state were interrupted.
const RunStatusRunning = "running"

// Run is one CLI invocation that rendered beats.
type Run struct {
	ID           string
	Command      string
	Theme        string
	StoryPath    string
	Status       string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Succeeded    int
	Failed       int
	FinalOutput  string
	ErrorMessage string
}

// Duration returns how long the run took, or zero while running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Finished reports whether the run reached a terminal status.
func (r Run) Finished() bool {
	return r.Status != RunStatusRunning
}

// BeatRecord is the stored form of a reel.BeatOutcome.
type BeatRecord struct {
	RunID           string
	BeatID          int
	Success         bool
	Seed            string
	Operation       string
	DurationSeconds int
	VideoPath       string
	FramePath       string
	RemoteURI       string
	Reason          string
	ErrorMessage    string
	Elapsed         time.Duration
	RecordedAt      time.Time
}

func recordFromOutcome(runID string, outcome reel.BeatOutcome, now time.Time) BeatRecord {
	record := BeatRecord{
		RunID:           runID,
		BeatID:          outcome.BeatID,
		Success:         outcome.Success,
		Seed:            outcome.Seed,
		Operation:       outcome.Operation,
		DurationSeconds: outcome.DurationSeconds,
		VideoPath:       outcome.Video,
		FramePath:       outcome.ContinuityFrame,
		RemoteURI:       outcome.RemoteURI,
		Reason:          outcome.Reason,
		Elapsed:         outcome.Elapsed,
		RecordedAt:      now,
	}
	if outcome.Err != nil {
		record.ErrorMessage = outcome.Err.Error()
	}
	return record
}
