package storygen

import (
	"strconv"
	"strings"
)

const themeSuggestionPrompt = "Suggest one creative cinematic theme for a 30-60s silent vertical reel. " +
	"Output ONLY the theme text. No quotes, no extra words."

const storyPromptTemplate = `You are a cinematic storyteller and creative director. Generate a highly visual, continuous storyboard for a 30-60 second silent reel with no dialogue, no voice and no text overlays.
Theme: "{{theme}}"
Total Duration: {{total}} seconds (the final video must last exactly this long).

Your task:
1. Define ONE consistent MAIN CHARACTER for the entire reel. Describe physical appearance, outfit, and vibe in 2 lines.
2. Define ONE consistent SETTING for the reel. Describe atmosphere, time of day, lighting, and tone.
3. Define ONE consistent CINEMATIC STYLE. Mention visual tone, camera work, lighting style, and color palette.
4. Divide the reel into narrative BEATS.
   - Decide how many beats (usually 5-8).
   - Each beat lasts between 3 and 6 seconds.
   - Total duration of all beats must equal exactly {{total}}.
   - Each beat describes ONLY the character's actions, emotions, and camera framing, keeping setting and style consistent.

When describing each beat:
- Use clear visual verbs ("looks up", "turns slowly", "walks through the mist").
- Include emotional cues, lighting direction, and shot framing (close-up, medium, wide, over-the-shoulder, aerial).
- Each beat should read like a single cinematic frame usable for image generation.

Respond with JSON only, using exactly these keys:
{
  "theme": "...",
  "total_duration": {{total}},
  "main_character": "...",
  "setting": "...",
  "cinematic_style": "...",
  "beats": [
    {"id": 1, "character_action": "CLOSE-UP: ...", "duration": 6}
  ]
}`

func storyPrompt(theme string, totalSeconds int) string {
	return strings.NewReplacer(
		"{{theme}}", theme,
		"{{total}}", strconv.Itoa(totalSeconds),
	).Replace(storyPromptTemplate)
}
