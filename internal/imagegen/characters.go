package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"reelgen/internal/fileutil"
	"reelgen/internal/logging"
	"reelgen/internal/reel"
	"reelgen/internal/services"
)

// DefaultIdentitySeed anchors the character's look across portraits.
const DefaultIdentitySeed = 1337

const (
	referenceNegativePrompt = "different person, changed face, different hairstyle, different hair color, " +
		"different clothing, cartoonish, deformed, cropped, extra people"
	beatNegativePrompt = "different person, changed identity, different face, different hairstyle, " +
		"different hair color, different clothing/outfit, different age, different ethnicity, " +
		"extra people, cropped face, profile-only"
)

// Renderer produces image bytes for a request.
type Renderer interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// Characters writes the portraits the video pipeline seeds from.
type Characters struct {
	renderer     Renderer
	dir          string
	identitySeed int
	aspect       string
	logger       *slog.Logger
}

// CharactersOption customizes Characters.
type CharactersOption func(*Characters)

// WithIdentitySeed overrides the base seed.
func WithIdentitySeed(seed int) CharactersOption {
	return func(c *Characters) {
		c.identitySeed = seed
	}
}

// WithCharactersAspect sets the portrait aspect ratio.
func WithCharactersAspect(aspect string) CharactersOption {
	return func(c *Characters) {
		c.aspect = strings.TrimSpace(aspect)
	}
}

// WithCharactersLogger sets the logger.
func WithCharactersLogger(logger *slog.Logger) CharactersOption {
	return func(c *Characters) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCharacters writes portraits into dir.
func NewCharacters(renderer Renderer, dir string, opts ...CharactersOption) *Characters {
	c := &Characters{
		renderer:     renderer,
		dir:          dir,
		identitySeed: DefaultIdentitySeed,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = logging.NewComponentLogger(c.logger, "characters")
	return c
}

// ReferencePath is where the identity portrait is written.
func (c *Characters) ReferencePath() string {
	return filepath.Join(c.dir, reel.CharacterReferenceName)
}

// GenerateReference renders the identity portrait.
func (c *Characters) GenerateReference(ctx context.Context, mainCharacter string) (string, error) {
	if strings.TrimSpace(mainCharacter) == "" {
		return "", services.Wrap(services.ErrValidation, "characters", "reference", "main character description is empty", nil)
	}
	prompt := fmt.Sprintf("Generate the MAIN CHARACTER for this reel:\n%s.\n"+
		"%s aspect ratio, cinematic high-quality portrait, full-body, facing camera.\n"+
		"Realistic, consistent identity for use across multiple scenes.\n"+
		"Background removed (transparent if possible).",
		strings.TrimSpace(mainCharacter), c.aspectOrDefault())
	return c.render(ctx, "reference", c.ReferencePath(), Request{
		Prompt:         prompt,
		NegativePrompt: referenceNegativePrompt,
		Seed:           intPtr(c.identitySeed),
		AspectRatio:    c.aspect,
	})
}

// GenerateBeatCharacter renders the character performing beat's action,
// seeded with identity seed plus beat id.
func (c *Characters) GenerateBeatCharacter(ctx context.Context, mainCharacter string, beat reel.Beat) (string, error) {
	action := strings.TrimSpace(beat.CharacterAction)
	if action == "" {
		action = "Performs an action"
	}
	prompt := fmt.Sprintf("Generate the EXACT SAME main character as in the reference image performing the described action.\n"+
		"Character: %s.\n"+
		"Character identity must remain identical: same face, facial structure, eye color, hairstyle, hair color, "+
		"clothing/outfit, and body proportions. Do NOT change identity.\n\n"+
		"Action: %s.\n"+
		"%s aspect ratio, cinematic lighting, realistic art style.\n"+
		"Transparent background if possible.",
		strings.TrimSpace(mainCharacter), action, c.aspectOrDefault())
	ctx = services.WithBeatID(ctx, beat.ID)
	return c.render(ctx, "portrait", reel.CharacterImagePath(c.dir, beat.ID), Request{
		Prompt:         prompt,
		NegativePrompt: beatNegativePrompt,
		Seed:           intPtr(c.identitySeed + beat.ID),
		AspectRatio:    c.aspect,
	})
}

// GenerateAll renders the reference and one portrait per beat.
func (c *Characters) GenerateAll(ctx context.Context, story reel.Story) ([]string, error) {
	return c.generate(ctx, story, len(story.Beats))
}

// GenerateMinimal renders the reference and the first beat only. Later beats
// are seeded from continuity frames.
func (c *Characters) GenerateMinimal(ctx context.Context, story reel.Story) ([]string, error) {
	return c.generate(ctx, story, 1)
}

func (c *Characters) generate(ctx context.Context, story reel.Story, beats int) ([]string, error) {
	if err := story.Validate(); err != nil {
		return nil, err
	}
	reference, err := c.GenerateReference(ctx, story.MainCharacter)
	if err != nil {
		return nil, err
	}
	paths := []string{reference}
	for _, beat := range story.Beats[:min(beats, len(story.Beats))] {
		path, err := c.GenerateBeatCharacter(ctx, story.MainCharacter, beat)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	logging.WithContext(ctx, c.logger).Info("character images ready", logging.Int("images", len(paths)))
	return paths, nil
}

// render tries the full request first, then once more without seed and
// negative prompt when the model returns nothing.
func (c *Characters) render(ctx context.Context, stage, path string, req Request) (string, error) {
	ctx = services.WithStage(ctx, stage)
	logger := logging.WithContext(ctx, c.logger)
	logger.Info("generating character image", logging.String("path", path))

	image, err := c.renderer.Generate(ctx, req)
	if err != nil && isNoImage(err) {
		logging.WarnWithContext(logger, "no image returned; retrying without identity constraints", "image_fallback",
			logging.String(logging.FieldImpact, "character identity may drift"),
		)
		req.Seed = nil
		req.NegativePrompt = ""
		image, err = c.renderer.Generate(ctx, req)
	}
	if err != nil {
		return "", err
	}
	if err := fileutil.WriteFileAtomic(path, image, 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "characters", stage, "write image", err)
	}
	logger.Info("character image saved", logging.String("path", path))
	return path, nil
}

func (c *Characters) aspectOrDefault() string {
	if c.aspect == "" {
		return "9:16"
	}
	return c.aspect
}

func intPtr(v int) *int {
	return &v
}
