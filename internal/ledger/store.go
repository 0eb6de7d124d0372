package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"reelgen/internal/config"
	"reelgen/internal/reel"
	"reelgen/internal/services"
)

const runColumns = "id, command, theme, story_path, status, started_at, finished_at, succeeded, failed, final_output, error_message"

const beatColumns = "run_id, beat_id, success, seed, operation, duration_seconds, video_path, frame_path, remote_uri, reason, error_message, elapsed_ms, recorded_at"

// Store is the SQLite-backed run ledger.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open connects to the ledger configured in cfg, creating it if needed.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.LedgerPath())
}

// OpenPath connects to the ledger at path.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun inserts a running entry.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, theme, story_path, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Command,
		nullableString(run.Theme),
		nullableString(run.StoryPath),
		RunStatusRunning,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SetTheme records the theme once the story is known.
func (s *Store) SetTheme(ctx context.Context, id, theme string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET theme = ? WHERE id = ?`, nullableString(theme), id)
	if err != nil {
		return fmt.Errorf("set theme: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.Wrap(services.ErrNotFound, "ledger", "set theme", id, nil)
	}
	return nil
}

// RecordBeat stores outcome under the run id carried by ctx. A beat recorded
// twice for the same run keeps the latest outcome.
func (s *Store) RecordBeat(ctx context.Context, outcome reel.BeatOutcome) error {
	runID, ok := services.RunIDFromContext(ctx)
	if !ok {
		return errors.New("record beat: context carries no run id")
	}
	record := recordFromOutcome(runID, outcome, s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO beats (`+beatColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(run_id, beat_id) DO UPDATE SET
             success = excluded.success, seed = excluded.seed, operation = excluded.operation,
             duration_seconds = excluded.duration_seconds, video_path = excluded.video_path,
             frame_path = excluded.frame_path, remote_uri = excluded.remote_uri,
             reason = excluded.reason, error_message = excluded.error_message,
             elapsed_ms = excluded.elapsed_ms, recorded_at = excluded.recorded_at`,
		record.RunID,
		record.BeatID,
		boolToInt(record.Success),
		nullableString(record.Seed),
		nullableString(record.Operation),
		record.DurationSeconds,
		nullableString(record.VideoPath),
		nullableString(record.FramePath),
		nullableString(record.RemoteURI),
		nullableString(record.Reason),
		nullableString(record.ErrorMessage),
		record.Elapsed.Milliseconds(),
		record.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record beat %d: %w", outcome.BeatID, err)
	}
	return nil
}

// FinishRun closes a run, deriving the success and failure counts from its
// recorded beats.
func (s *Store) FinishRun(ctx context.Context, id, status, finalOutput string, runErr error) error {
	var errMsg string
	if runErr != nil {
		errMsg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
             status = ?, finished_at = ?, final_output = ?, error_message = ?,
             succeeded = (SELECT COUNT(1) FROM beats WHERE run_id = runs.id AND success = 1),
             failed = (SELECT COUNT(1) FROM beats WHERE run_id = runs.id AND success = 0)
         WHERE id = ?`,
		status,
		s.now().Format(time.RFC3339Nano),
		nullableString(finalOutput),
		nullableString(errMsg),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.Wrap(services.ErrNotFound, "ledger", "finish run", id, nil)
	}
	return nil
}

// GetRun fetches a run by id, returning nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// RecentRuns lists the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Beats lists the recorded beats of a run in beat order.
func (s *Store) Beats(ctx context.Context, runID string) ([]BeatRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+beatColumns+` FROM beats WHERE run_id = ? ORDER BY beat_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list beats: %w", err)
	}
	defer rows.Close()
	var beats []BeatRecord
	for rows.Next() {
		beat, err := scanBeat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan beat: %w", err)
		}
		beats = append(beats, beat)
	}
	return beats, rows.Err()
}

// MarkInterrupted closes runs left running by a crashed process.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error_message = COALESCE(error_message, 'interrupted') WHERE status = ?`,
		string(reel.StatusFailed),
		s.now().Format(time.RFC3339Nano),
		RunStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}
