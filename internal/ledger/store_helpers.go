package ledger

import (
	"database/sql"
	"errors"
	"time"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run         Run
		theme       sql.NullString
		storyPath   sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
		finalOutput sql.NullString
		errMessage  sql.NullString
	)
	if err := row.Scan(
		&run.ID,
		&run.Command,
		&theme,
		&storyPath,
		&run.Status,
		&startedRaw,
		&finishedRaw,
		&run.Succeeded,
		&run.Failed,
		&finalOutput,
		&errMessage,
	); err != nil {
		return nil, err
	}
	run.Theme = theme.String
	run.StoryPath = storyPath.String
	run.FinalOutput = finalOutput.String
	run.ErrorMessage = errMessage.String
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return &run, nil
}

func scanBeat(row scanner) (BeatRecord, error) {
	var (
		record      BeatRecord
		success     int
		seed        sql.NullString
		operation   sql.NullString
		videoPath   sql.NullString
		framePath   sql.NullString
		remoteURI   sql.NullString
		reason      sql.NullString
		errMessage  sql.NullString
		elapsedMS   int64
		recordedRaw string
	)
	if err := row.Scan(
		&record.RunID,
		&record.BeatID,
		&success,
		&seed,
		&operation,
		&record.DurationSeconds,
		&videoPath,
		&framePath,
		&remoteURI,
		&reason,
		&errMessage,
		&elapsedMS,
		&recordedRaw,
	); err != nil {
		return BeatRecord{}, err
	}
	record.Success = success != 0
	record.Seed = seed.String
	record.Operation = operation.String
	record.VideoPath = videoPath.String
	record.FramePath = framePath.String
	record.RemoteURI = remoteURI.String
	record.Reason = reason.String
	record.ErrorMessage = errMessage.String
	record.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if recorded, err := parseTimeString(recordedRaw); err == nil {
		record.RecordedAt = recorded
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
