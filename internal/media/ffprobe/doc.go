// Package ffprobe summarizes finished clips and reels (duration, resolution,
// codecs) from ffprobe JSON output for run reports.
package ffprobe
