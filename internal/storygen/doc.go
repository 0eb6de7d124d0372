// Package storygen drafts story outlines with an OpenAI-compatible chat model.
//
// Generate asks for a complete outline (character, setting, style and 5-8
// beats) whose durations add up to the requested total. When the theme is
// empty, "auto" or "default", SuggestTheme picks one first; a failed
// suggestion falls back to a fixed theme so generation can proceed.
//
// The client retries 408/429/5xx responses and network timeouts with
// exponential backoff and tolerates code-fenced JSON in replies.
package storygen
