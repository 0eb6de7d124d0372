package veo

import (
	"fmt"
	"time"

	"reelgen/internal/services"
)

// SubmissionError reports that a job could not be created.
type SubmissionError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("submit video job: http %d: %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("submit video job: %v", e.Err)
	default:
		return "submit video job failed"
	}
}

func (e *SubmissionError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrSubmission}
	}
	return []error{services.ErrSubmission, e.Err}
}

// PollError reports a client-side rejection while polling.
type PollError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll %s: http %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e *PollError) Unwrap() error { return services.ErrPoll }

// TimeoutError reports a job that did not finish within the poll budget.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s did not complete within %s (%.1f minutes)",
		e.Operation, e.Timeout, e.Timeout.Minutes())
}

func (e *TimeoutError) Unwrap() error { return services.ErrTimeout }

// GenerationError carries the error envelope the platform attached to a
// finished job.
type GenerationError struct {
	Operation string
	Code      int
	Message   string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("operation %s failed: code %d: %s", e.Operation, e.Code, e.Message)
}

func (e *GenerationError) Unwrap() error { return services.ErrGeneration }

// DecodeError reports a malformed inline payload.
type DecodeError struct {
	Operation string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode video payload for %s: %v", e.Operation, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrDecode}
	}
	return []error{services.ErrDecode, e.Err}
}
