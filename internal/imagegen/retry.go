package imagegen

import (
	"errors"
	"strings"
	"time"
)

const (
	sanitizedPrefix = "Create a wholesome, safe-for-work, non-sensitive image. " +
		"Avoid any content that may violate safety policies.\n"
	genericFallbackPrompt = "Create a wholesome, neutral, non-sensitive portrait of the same character " +
		"performing the action in a safe and policy-compliant manner."
	watermarkSeedConflict = "Seed is not supported when watermark is enabled"
)

// RetryPolicy decides how image requests are retried. MaxRetries counts
// retries after the first attempt.
type RetryPolicy struct {
	MaxRetries   int
	BlockedDelay time.Duration
	ErrorDelay   time.Duration
}

// DefaultRetryPolicy allows two retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BlockedDelay: time.Second, ErrorDelay: 500 * time.Millisecond}
}

// Attempts returns the total number of attempts the policy allows.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// SanitizedPrompt returns the prompt to use after a safety block on the given
// zero-based attempt: the first block prefixes the original prompt, later
// blocks replace it with a generic portrait request.
func (p RetryPolicy) SanitizedPrompt(original string, attempt int) string {
	if attempt <= 0 {
		return sanitizedPrefix + original
	}
	return genericFallbackPrompt
}

// Delay returns the pause before the next attempt.
func (p RetryPolicy) Delay(err error) time.Duration {
	if IsPolicyBlock(err) {
		return p.BlockedDelay
	}
	return p.ErrorDelay
}

// IsPolicyBlock reports whether the service rejected the prompt on safety
// grounds.
func IsPolicyBlock(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	msg := strings.ToLower(reqErr.Message)
	return strings.Contains(msg, "blocked") || strings.Contains(msg, "violat")
}

// IsSeedConflict reports whether the service refused a seeded request
// because watermarking is on.
func IsSeedConflict(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && strings.Contains(reqErr.Message, watermarkSeedConflict)
}
