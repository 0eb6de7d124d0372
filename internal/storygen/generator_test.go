package storygen_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reelgen/internal/services"
	"reelgen/internal/storygen"
)

type call struct {
	prompt      string
	temperature float64
	jsonMode    bool
}

type scriptedCompleter struct {
	replies []string
	errs    []error
	calls   []call
}

func (s *scriptedCompleter) Complete(_ context.Context, prompt string, temperature float64, jsonMode bool) (string, error) {
	idx := len(s.calls)
	s.calls = append(s.calls, call{prompt: prompt, temperature: temperature, jsonMode: jsonMode})
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	if err != nil {
		return "", err
	}
	if idx < len(s.replies) {
		return s.replies[idx], nil
	}
	return "", errors.New("no scripted reply")
}

const storyJSON = `{
  "theme": "",
  "total_duration": 0,
  "main_character": "a retired lighthouse keeper",
  "setting": "stormy coast at dusk",
  "cinematic_style": "cold blues, slow dolly",
  "beats": [
    {"id": 2, "character_action": "climbs the stairs", "duration": 6},
    {"id": 1, "character_action": "watches the waves", "duration": 6}
  ]
}`

func TestGenerateSuggestsThemeForAuto(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"\"the last light\"\nextra line", "```json\n" + storyJSON + "\n```"}}
	story, err := storygen.NewGenerator(completer).Generate(context.Background(), "auto", 12)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(completer.calls) != 2 {
		t.Fatalf("calls = %d", len(completer.calls))
	}
	if completer.calls[0].temperature != 0.9 || completer.calls[0].jsonMode {
		t.Fatalf("unexpected suggestion call %+v", completer.calls[0])
	}
	if !strings.Contains(completer.calls[1].prompt, `Theme: "the last light"`) {
		t.Fatalf("story prompt missing theme:\n%s", completer.calls[1].prompt)
	}
	if !strings.Contains(completer.calls[1].prompt, "must equal exactly 12") {
		t.Fatalf("story prompt missing total")
	}
	if story.Theme != "the last light" || story.TotalDuration != 12 {
		t.Fatalf("unexpected story header %+v", story)
	}
	if story.Beats[0].ID != 1 {
		t.Fatalf("beats not sorted: %+v", story.Beats)
	}
}

func TestGenerateFallsBackWhenSuggestionFails(t *testing.T) {
	completer := &scriptedCompleter{
		errs:    []error{services.Wrap(services.ErrTransient, "storygen", "complete", "down", nil)},
		replies: []string{"", storyJSON},
	}
	story, err := storygen.NewGenerator(completer).Generate(context.Background(), "", 12)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if story.Theme != storygen.FallbackTheme {
		t.Fatalf("theme = %q", story.Theme)
	}
}

func TestGenerateUsesExplicitTheme(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{storyJSON}}
	if _, err := storygen.NewGenerator(completer, storygen.WithTemperature(0.3)).Generate(context.Background(), "tidal memory", 12); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(completer.calls) != 1 || completer.calls[0].temperature != 0.3 {
		t.Fatalf("unexpected calls %+v", completer.calls)
	}
}

func TestGenerateRejectsBadResponses(t *testing.T) {
	cases := map[string]struct {
		reply  string
		marker error
	}{
		"not json": {"I cannot help with that", services.ErrDecode},
		"no beats": {`{"theme":"x","beats":[]}`, services.ErrValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			completer := &scriptedCompleter{replies: []string{tc.reply}}
			_, err := storygen.NewGenerator(completer).Generate(context.Background(), "theme", 30)
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestIsAutoTheme(t *testing.T) {
	for _, theme := range []string{"", " auto ", "AUTO", "Default"} {
		if !storygen.IsAutoTheme(theme) {
			t.Errorf("IsAutoTheme(%q) = false", theme)
		}
	}
	if storygen.IsAutoTheme("autumn") {
		t.Error("IsAutoTheme(autumn) = true")
	}
}
