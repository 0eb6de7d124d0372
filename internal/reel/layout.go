package reel

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// CharacterReferenceName is the identity portrait shared by every beat.
const CharacterReferenceName = "character_reference.png"

var clipPattern = regexp.MustCompile(`^beat_(\d+)\.mp4$`)

// CharacterImagePath returns <dir>/beat_<id>_character.png.
func CharacterImagePath(dir string, beatID int) string {
	return filepath.Join(dir, fmt.Sprintf("beat_%d_character.png", beatID))
}

// ClipPath returns <dir>/beat_<id>.mp4.
func ClipPath(dir string, beatID int) string {
	return filepath.Join(dir, fmt.Sprintf("beat_%d.mp4", beatID))
}

// ExistingClips lists beat clips already in dir, ordered by beat id.
func ExistingClips(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type clip struct {
		id   int
		path string
	}
	var clips []clip
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := clipPattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		id, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		clips = append(clips, clip{id: id, path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(clips, func(i, j int) bool { return clips[i].id < clips[j].id })
	paths := make([]string, 0, len(clips))
	for _, c := range clips {
		paths = append(paths, c.path)
	}
	return paths, nil
}
