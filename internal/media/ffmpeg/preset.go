package ffmpeg

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Preset describes the re-encode used when clips cannot be stream copied.
type Preset struct {
	Name         string   `yaml:"name"`
	VideoCodec   string   `yaml:"video_codec"`
	Speed        string   `yaml:"speed"`
	CRF          int      `yaml:"crf"`
	PixelFormat  string   `yaml:"pixel_format"`
	FrameRate    int      `yaml:"frame_rate"`
	AudioCodec   string   `yaml:"audio_codec"`
	AudioBitrate string   `yaml:"audio_bitrate"`
	ExtraArgs    []string `yaml:"extra_args"`
}

var builtinPresets = map[string]Preset{
	"reel_h264": {
		Name:         "reel_h264",
		VideoCodec:   "libx264",
		Speed:        "medium",
		CRF:          20,
		PixelFormat:  "yuv420p",
		FrameRate:    30,
		AudioCodec:   "aac",
		AudioBitrate: "192k",
	},
	"reel_h264_fast": {
		Name:         "reel_h264_fast",
		VideoCodec:   "libx264",
		Speed:        "veryfast",
		CRF:          23,
		PixelFormat:  "yuv420p",
		FrameRate:    30,
		AudioCodec:   "aac",
		AudioBitrate: "128k",
	},
}

// DefaultPreset returns the built-in H.264 preset.
func DefaultPreset() Preset {
	return builtinPresets["reel_h264"]
}

// BuiltinPreset looks up a named built-in preset.
func BuiltinPreset(name string) (Preset, error) {
	preset, ok := builtinPresets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		names := make([]string, 0, len(builtinPresets))
		for key := range builtinPresets {
			names = append(names, key)
		}
		sort.Strings(names)
		return Preset{}, fmt.Errorf("unknown re-encode preset %q (available: %s)", name, strings.Join(names, ", "))
	}
	return preset, nil
}

// LoadPreset reads a YAML preset file. Unset fields inherit from the default
// preset.
func LoadPreset(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("read preset: %w", err)
	}
	preset := DefaultPreset()
	preset.Name = ""
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return Preset{}, fmt.Errorf("parse preset %s: %w", path, err)
	}
	if preset.Name == "" {
		preset.Name = "custom"
	}
	if preset.CRF < 0 || preset.CRF > 51 {
		return Preset{}, fmt.Errorf("preset %s: crf %d out of range", path, preset.CRF)
	}
	return preset, nil
}

// ResolvePreset prefers a preset file over a built-in name.
func ResolvePreset(name, file string) (Preset, error) {
	if strings.TrimSpace(file) != "" {
		return LoadPreset(file)
	}
	if strings.TrimSpace(name) == "" {
		return DefaultPreset(), nil
	}
	return BuiltinPreset(name)
}

// Args renders the encoder arguments.
func (p Preset) Args() []string {
	var args []string
	if p.VideoCodec != "" {
		args = append(args, "-c:v", p.VideoCodec)
	}
	if p.Speed != "" {
		args = append(args, "-preset", p.Speed)
	}
	if p.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(p.CRF))
	}
	if p.PixelFormat != "" {
		args = append(args, "-pix_fmt", p.PixelFormat)
	}
	if p.FrameRate > 0 {
		args = append(args, "-r", strconv.Itoa(p.FrameRate))
	}
	if p.AudioCodec != "" {
		args = append(args, "-c:a", p.AudioCodec)
	}
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	return append(args, p.ExtraArgs...)
}
