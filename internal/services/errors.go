package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAuth          = errors.New("auth error")
	ErrSubmission    = errors.New("submission error")
	ErrPoll          = errors.New("poll error")
	ErrTimeout       = errors.New("timeout")
	ErrGeneration    = errors.New("generation error")
	ErrDecode        = errors.New("decode error")
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind maps an error to the short label recorded in the run ledger and
// shown in CLI summaries.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrSubmission):
		return "submission"
	case errors.Is(err, ErrPoll):
		return "poll"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrGeneration):
		return "generation"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "failed"
	}
}

// IsFatal reports whether err must abort a whole run rather than a single beat.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuth)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
