package imagegen_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelgen/internal/imagegen"
	"reelgen/internal/reel"
)

type fakeRenderer struct {
	requests []imagegen.Request
	failures map[int]error
}

func (f *fakeRenderer) Generate(_ context.Context, req imagegen.Request) ([]byte, error) {
	idx := len(f.requests)
	f.requests = append(f.requests, req)
	if err := f.failures[idx]; err != nil {
		return nil, err
	}
	return []byte("image-" + strings.Fields(req.Prompt)[0]), nil
}

func story() reel.Story {
	return reel.Story{
		MainCharacter: "a young cartographer in a green coat",
		Beats: []reel.Beat{
			{ID: 1, CharacterAction: "unrolls a map", Duration: 5},
			{ID: 2, CharacterAction: "points at the horizon", Duration: 5},
			{ID: 3, CharacterAction: "", Duration: 5},
		},
	}
}

func TestGenerateAllSeedsPerBeat(t *testing.T) {
	dir := t.TempDir()
	renderer := &fakeRenderer{}
	chars := imagegen.NewCharacters(renderer, dir, imagegen.WithIdentitySeed(100))

	paths, err := chars.GenerateAll(context.Background(), story())
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if len(paths) != 4 {
		t.Fatalf("paths = %v", paths)
	}
	wantSeeds := []int{100, 101, 102, 103}
	for i, req := range renderer.requests {
		if req.Seed == nil || *req.Seed != wantSeeds[i] {
			t.Fatalf("request %d seed = %v, want %d", i, req.Seed, wantSeeds[i])
		}
		if req.NegativePrompt == "" {
			t.Fatalf("request %d missing negative prompt", i)
		}
	}
	if !strings.Contains(renderer.requests[3].Prompt, "Action: Performs an action.") {
		t.Fatalf("blank action not defaulted: %q", renderer.requests[3].Prompt)
	}
	for _, name := range []string{reel.CharacterReferenceName, "beat_1_character.png", "beat_3_character.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}

func TestGenerateMinimalStopsAfterFirstBeat(t *testing.T) {
	dir := t.TempDir()
	renderer := &fakeRenderer{}
	paths, err := imagegen.NewCharacters(renderer, dir).GenerateMinimal(context.Background(), story())
	if err != nil {
		t.Fatalf("GenerateMinimal: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[1]) != "beat_1_character.png" {
		t.Fatalf("paths = %v", paths)
	}
	if *renderer.requests[1].Seed != imagegen.DefaultIdentitySeed+1 {
		t.Fatalf("beat seed = %d", *renderer.requests[1].Seed)
	}
}

func TestRenderFallsBackWithoutIdentityConstraints(t *testing.T) {
	renderer := &fakeRenderer{failures: map[int]error{0: imagegen.ErrNoImage}}
	path, err := imagegen.NewCharacters(renderer, t.TempDir()).GenerateReference(context.Background(), "a baker")
	if err != nil {
		t.Fatalf("GenerateReference: %v", err)
	}
	if len(renderer.requests) != 2 {
		t.Fatalf("requests = %d", len(renderer.requests))
	}
	retry := renderer.requests[1]
	if retry.Seed != nil || retry.NegativePrompt != "" {
		t.Fatalf("fallback kept constraints: %+v", retry)
	}
	if filepath.Base(path) != reel.CharacterReferenceName {
		t.Fatalf("path = %q", path)
	}
}

func TestGenerateReferenceRequiresDescription(t *testing.T) {
	if _, err := imagegen.NewCharacters(&fakeRenderer{}, t.TempDir()).GenerateReference(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty description")
	}
}
