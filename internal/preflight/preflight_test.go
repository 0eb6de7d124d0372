package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"reelgen/internal/config"
	"reelgen/internal/platform"
	"reelgen/internal/reel"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func chatServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" || status != http.StatusOK {
			code := status
			if code == http.StatusOK {
				code = http.StatusUnauthorized
			}
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "OK"}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckStoryLLM_OK(t *testing.T) {
	srv := chatServer(t, http.StatusOK)
	cfg := config.Default().Story
	cfg.APIKey = "good-key"
	cfg.BaseURL = srv.URL

	result := CheckStoryLLM(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckStoryLLM_BadKey(t *testing.T) {
	srv := chatServer(t, http.StatusOK)
	cfg := config.Default().Story
	cfg.APIKey = "bad-key"
	cfg.BaseURL = srv.URL

	result := CheckStoryLLM(context.Background(), cfg)
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if !strings.Contains(result.Detail, "configuration error") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckStoryLLM_MissingKey(t *testing.T) {
	result := CheckStoryLLM(context.Background(), config.Story{})
	if result.Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestCheckPlatform_StaticToken(t *testing.T) {
	cfg := config.Default()
	cfg.Platform.ProjectID = "demo"

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"})
	result := CheckPlatform(context.Background(), &cfg, platform.WithTokenSource(ts))
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "demo/") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckPlatform_MissingProject(t *testing.T) {
	cfg := config.Default()
	result := CheckPlatform(context.Background(), &cfg)
	if result.Passed {
		t.Fatal("expected failure without a project")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.CharactersDir = t.TempDir()
	cfg.Paths.VideosDir = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_IncludesStoryLLMWhenKeySet(t *testing.T) {
	srv := chatServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Paths.CharactersDir = t.TempDir()
	cfg.Paths.VideosDir = filepath.Join(t.TempDir(), "missing")
	cfg.Paths.StateDir = t.TempDir()
	cfg.Story.APIKey = "good-key"
	cfg.Story.BaseURL = srv.URL

	results := RunAll(context.Background(), &cfg)
	found := false
	for _, r := range results {
		if r.Name == "Story LLM" {
			found = true
			if !r.Passed {
				t.Errorf("story check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected story check in results")
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Videos directory" {
		t.Fatalf("expected only the videos directory to fail, got %+v", failed)
	}
}

func TestCheckSystemDepsUsesConfiguredBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Media.FFmpegBinary = "clearly-not-ffmpeg"
	cfg.Media.FallbackFFmpegBinary = ""
	cfg.Media.FFprobeBinary = "clearly-not-ffprobe"

	statuses := CheckSystemDeps(&cfg)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Available || statuses[0].Command != "clearly-not-ffmpeg" {
		t.Fatalf("unexpected ffmpeg status: %+v", statuses[0])
	}
	if statuses[1].Available || !statuses[1].Optional {
		t.Fatalf("unexpected ffprobe status: %+v", statuses[1])
	}
}

func TestCheckWorkspace(t *testing.T) {
	cfg := config.Default()
	root := t.TempDir()
	cfg.Paths.StoryFile = filepath.Join(root, "story.json")
	cfg.Paths.CharactersDir = filepath.Join(root, "characters")
	cfg.Paths.VideosDir = filepath.Join(root, "videos")
	cfg.Paths.FinalOutput = filepath.Join(root, "final_reel.mp4")

	results := CheckWorkspace(&cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Passed {
			t.Fatalf("expected empty workspace, got %+v", r)
		}
	}

	story := reel.Story{
		Theme:         "hope",
		TotalDuration: 12,
		Beats: []reel.Beat{
			{ID: 1, CharacterAction: "walks", Duration: 6},
			{ID: 2, CharacterAction: "waves", Duration: 6},
		},
	}
	if err := reel.SaveStory(cfg.Paths.StoryFile, story); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(cfg.Paths.VideosDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(reel.ClipPath(cfg.Paths.VideosDir, 1), []byte("clip"), 0o644); err != nil {
		t.Fatal(err)
	}

	results = CheckWorkspace(&cfg)
	if !results[0].Passed || !strings.HasPrefix(results[0].Detail, "2 beats") {
		t.Fatalf("unexpected story result: %+v", results[0])
	}
	if results[2].Passed || results[2].Detail != "1 of 2 beats" {
		t.Fatalf("unexpected clips result: %+v", results[2])
	}
}
