package preflight

import (
	"context"
	"strings"

	"reelgen/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Characters directory", cfg.Paths.CharactersDir),
		CheckDirectoryAccess("Videos directory", cfg.Paths.VideosDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	if strings.TrimSpace(cfg.Platform.ProjectID) != "" {
		results = append(results, CheckPlatform(ctx, cfg))
	}

	if strings.TrimSpace(cfg.Story.APIKey) != "" {
		results = append(results, CheckStoryLLM(ctx, cfg.Story))
	}

	return results
}
