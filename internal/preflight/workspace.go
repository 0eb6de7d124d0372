package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"reelgen/internal/config"
	"reelgen/internal/fileutil"
	"reelgen/internal/reel"
	"reelgen/internal/services"
)

// CheckWorkspace reports which run artifacts already exist on disk. A
// missing artifact is not an error, it just means that stage has not run.
func CheckWorkspace(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := make([]Result, 0, 4)
	story, storyErr := reel.LoadStory(cfg.Paths.StoryFile)
	switch {
	case storyErr == nil:
		results = append(results, Result{
			Name:   "Story",
			Passed: true,
			Detail: fmt.Sprintf("%d beats, %ds (%s)", len(story.Beats), story.TotalDuration, cfg.Paths.StoryFile),
		})
	case errors.Is(storyErr, services.ErrNotFound):
		results = append(results, Result{Name: "Story", Detail: "not generated"})
	default:
		results = append(results, Result{Name: "Story", Detail: storyErr.Error()})
	}

	reference := filepath.Join(cfg.Paths.CharactersDir, reel.CharacterReferenceName)
	if fileutil.NonEmpty(reference) {
		results = append(results, Result{Name: "Character reference", Passed: true, Detail: reference})
	} else {
		results = append(results, Result{Name: "Character reference", Detail: "not generated"})
	}

	clips, err := reel.ExistingClips(cfg.Paths.VideosDir)
	switch {
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		results = append(results, Result{Name: "Clips", Detail: err.Error()})
	case storyErr == nil:
		results = append(results, Result{
			Name:   "Clips",
			Passed: len(clips) >= len(story.Beats) && len(clips) > 0,
			Detail: fmt.Sprintf("%d of %d beats", len(clips), len(story.Beats)),
		})
	default:
		results = append(results, Result{Name: "Clips", Passed: len(clips) > 0, Detail: fmt.Sprintf("%d found", len(clips))})
	}

	if fileutil.NonEmpty(cfg.Paths.FinalOutput) {
		results = append(results, Result{Name: "Final reel", Passed: true, Detail: cfg.Paths.FinalOutput})
	} else {
		results = append(results, Result{Name: "Final reel", Detail: "not stitched"})
	}
	return results
}
