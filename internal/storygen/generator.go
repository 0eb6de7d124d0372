package storygen

import (
	"context"
	"log/slog"
	"strings"

	"reelgen/internal/logging"
	"reelgen/internal/reel"
	"reelgen/internal/services"
)

// FallbackTheme is used when theme suggestion fails.
const FallbackTheme = "rediscovering joy after heartbreak"

const (
	storyTemperature      = 0.7
	suggestionTemperature = 0.9
	maxThemeLength        = 120
)

// Completer sends one prompt and returns the model text.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64, jsonMode bool) (string, error)
}

// Generator drafts stories.
type Generator struct {
	client      Completer
	temperature float64
	logger      *slog.Logger
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithTemperature overrides the story sampling temperature.
func WithTemperature(temperature float64) GeneratorOption {
	return func(g *Generator) {
		g.temperature = temperature
	}
}

// WithLogger sets the generator logger.
func WithLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGenerator wraps client.
func NewGenerator(client Completer, opts ...GeneratorOption) *Generator {
	g := &Generator{client: client, temperature: storyTemperature, logger: logging.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	g.logger = logging.NewComponentLogger(g.logger, "story")
	return g
}

// IsAutoTheme reports whether theme asks for a suggested theme.
func IsAutoTheme(theme string) bool {
	switch strings.ToLower(strings.TrimSpace(theme)) {
	case "", "auto", "default":
		return true
	default:
		return false
	}
}

// SuggestTheme asks the model for a short theme. It never fails: any error
// yields FallbackTheme.
func (g *Generator) SuggestTheme(ctx context.Context) string {
	logger := logging.WithContext(ctx, g.logger)
	text, err := g.client.Complete(ctx, themeSuggestionPrompt, suggestionTemperature, false)
	if err != nil {
		logging.WarnWithContext(logger, "theme suggestion failed", "theme_fallback",
			logging.Error(err),
			logging.String("theme", FallbackTheme),
			logging.String(logging.FieldImpact, "using fallback theme"),
		)
		return FallbackTheme
	}
	theme := cleanTheme(text)
	if theme == "" {
		return FallbackTheme
	}
	logger.Info("theme suggested", logging.String("theme", theme))
	return theme
}

// Generate drafts a story for theme lasting totalSeconds.
func (g *Generator) Generate(ctx context.Context, theme string, totalSeconds int) (reel.Story, error) {
	if totalSeconds <= 0 {
		return reel.Story{}, services.Wrap(services.ErrValidation, "story", "generate", "total duration must be positive", nil)
	}
	if IsAutoTheme(theme) {
		theme = g.SuggestTheme(ctx)
	}
	theme = strings.TrimSpace(theme)
	logger := logging.WithContext(ctx, g.logger)
	logger.Info("generating story", logging.String("theme", theme), logging.Int("total_duration", totalSeconds))

	content, err := g.client.Complete(ctx, storyPrompt(theme, totalSeconds), g.temperature, true)
	if err != nil {
		return reel.Story{}, err
	}
	var story reel.Story
	if err := DecodeJSON(content, &story); err != nil {
		return reel.Story{}, services.Wrap(services.ErrDecode, "story", "generate", "parse model response", err)
	}
	if strings.TrimSpace(story.Theme) == "" {
		story.Theme = theme
	}
	if story.TotalDuration <= 0 {
		story.TotalDuration = totalSeconds
	}
	if err := story.Validate(); err != nil {
		return reel.Story{}, err
	}
	if drift := story.DurationDrift(); drift != 0 {
		logging.WarnWithContext(logger, "beat durations do not add up", "duration_drift",
			logging.Int("drift_seconds", drift),
			logging.String(logging.FieldImpact, "reel length will differ from the request"),
		)
	}
	logger.Info("story generated",
		logging.String("theme", story.Theme),
		logging.Int("beats", len(story.Beats)),
	)
	return story, nil
}

// cleanTheme keeps the first line, strips quotes and bounds the length.
func cleanTheme(text string) string {
	line := strings.TrimSpace(text)
	if idx := strings.IndexAny(line, "\r\n"); idx >= 0 {
		line = line[:idx]
	}
	line = strings.Trim(strings.TrimSpace(line), `"'`)
	if runes := []rune(line); len(runes) > maxThemeLength {
		line = string(runes[:maxThemeLength])
	}
	return strings.TrimSpace(line)
}
