package reel

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"reelgen/internal/fileutil"
	"reelgen/internal/services"
)

// defaultBeatDuration applies to beats that omit a duration.
const defaultBeatDuration = 6

// Beat is one scene of the story.
type Beat struct {
	ID              int    `json:"id"`
	CharacterAction string `json:"character_action"`
	Duration        int    `json:"duration"`
}

// Story is the outline the pipeline renders.
type Story struct {
	Theme          string `json:"theme"`
	TotalDuration  int    `json:"total_duration"`
	MainCharacter  string `json:"main_character"`
	Setting        string `json:"setting"`
	CinematicStyle string `json:"cinematic_style"`
	Beats          []Beat `json:"beats"`
}

// LoadStory reads and validates a story file.
func LoadStory(path string) (Story, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Story{}, services.Wrap(services.ErrNotFound, "story", "load", fmt.Sprintf("story file %s not found", path), err)
		}
		return Story{}, services.Wrap(services.ErrValidation, "story", "load", "read story", err)
	}
	var story Story
	if err := json.Unmarshal(data, &story); err != nil {
		return Story{}, services.Wrap(services.ErrValidation, "story", "load", fmt.Sprintf("parse %s", path), err)
	}
	if err := story.Validate(); err != nil {
		return Story{}, err
	}
	return story, nil
}

// SaveStory writes story as indented JSON.
func SaveStory(path string, story Story) error {
	data, err := json.MarshalIndent(story, "", "  ")
	if err != nil {
		return fmt.Errorf("encode story: %w", err)
	}
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
}

// Validate checks beat ids, fills missing durations and sorts beats by id.
func (s *Story) Validate() error {
	if len(s.Beats) == 0 {
		return services.Wrap(services.ErrValidation, "story", "validate", "story has no beats", nil)
	}
	seen := make(map[int]struct{}, len(s.Beats))
	for i := range s.Beats {
		beat := &s.Beats[i]
		if beat.ID <= 0 {
			return services.Wrap(services.ErrValidation, "story", "validate", fmt.Sprintf("beat %d has non-positive id %d", i+1, beat.ID), nil)
		}
		if _, dup := seen[beat.ID]; dup {
			return services.Wrap(services.ErrValidation, "story", "validate", fmt.Sprintf("duplicate beat id %d", beat.ID), nil)
		}
		seen[beat.ID] = struct{}{}
		if beat.Duration <= 0 {
			beat.Duration = defaultBeatDuration
		}
		beat.CharacterAction = strings.TrimSpace(beat.CharacterAction)
	}
	sort.SliceStable(s.Beats, func(i, j int) bool { return s.Beats[i].ID < s.Beats[j].ID })
	return nil
}

// DurationDrift returns the sum of beat durations minus the declared total.
// Drift is advisory.
func (s Story) DurationDrift() int {
	sum := 0
	for _, beat := range s.Beats {
		sum += beat.Duration
	}
	return sum - s.TotalDuration
}

// BeatIDs lists beat ids in story order.
func (s Story) BeatIDs() []int {
	ids := make([]int, 0, len(s.Beats))
	for _, beat := range s.Beats {
		ids = append(ids, beat.ID)
	}
	return ids
}
