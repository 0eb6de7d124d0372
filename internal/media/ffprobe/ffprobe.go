package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Summary is the subset of ffprobe output reported for finished reels.
type Summary struct {
	Path            string
	DurationSeconds float64
	SizeBytes       int64
	Width           int
	Height          int
	VideoCodec      string
	AudioCodec      string
	VideoStreams    int
}

type probeOutput struct {
	Streams []struct {
		CodecName string `json:"codec_name"`
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// Probe executes ffprobe against path and summarizes the container.
func Probe(ctx context.Context, binary, path string) (Summary, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Summary{}, errors.New("ffprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Summary{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Summary{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parse(path, output)
}

func parse(path string, output []byte) (Summary, error) {
	var raw probeOutput
	if err := json.Unmarshal(output, &raw); err != nil {
		return Summary{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	summary := Summary{
		Path:            path,
		DurationSeconds: parseFloat(raw.Format.Duration),
		SizeBytes:       int64(parseFloat(raw.Format.Size)),
	}
	for _, stream := range raw.Streams {
		switch strings.ToLower(stream.CodecType) {
		case "video":
			summary.VideoStreams++
			if summary.VideoCodec == "" {
				summary.VideoCodec = stream.CodecName
				summary.Width = stream.Width
				summary.Height = stream.Height
			}
		case "audio":
			if summary.AudioCodec == "" {
				summary.AudioCodec = stream.CodecName
			}
		}
	}
	return summary, nil
}

// HasAudio reports whether an audio stream was found.
func (s Summary) HasAudio() bool { return s.AudioCodec != "" }

// Vertical reports whether the first video stream is taller than wide.
func (s Summary) Vertical() bool { return s.Height > s.Width && s.Width > 0 }

// Resolution renders "WxH", or "" when unknown.
func (s Summary) Resolution() string {
	if s.Width <= 0 || s.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return parsed
}
