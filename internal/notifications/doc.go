// Package notifications publishes run results to ntfy.
//
// When no topic is configured the service is a no-op, so callers never need
// to check whether notifications are enabled.
package notifications
