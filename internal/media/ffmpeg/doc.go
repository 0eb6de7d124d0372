// Package ffmpeg wraps the ffmpeg subprocesses the reel pipeline relies on:
// grabbing the final frame of a clip for continuity seeding and joining the
// finished clips into one output file.
//
// Joining first tries a stream copy through the concat demuxer. When the
// configured binary is not installed it falls back to a second binary and
// re-encodes with a YAML-configurable preset.
package ffmpeg
