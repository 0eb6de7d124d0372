// Package reel turns a story outline into per-beat video clips.
//
// Beats run strictly in id order. Each beat is animated from a seed image:
// the last frame of the most recent successful clip when there is one,
// otherwise the beat's character reference. A failed beat is recorded and
// skipped; only credential failures and a missing story stop the run.
package reel
