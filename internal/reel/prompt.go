package reel

import "fmt"

// BucketDuration maps a requested beat length onto the clip lengths the
// video model accepts: under 5s is 4, 5 to 6 is 6, anything longer is 8.
func BucketDuration(seconds int) int {
	switch {
	case seconds < 5:
		return 4
	case seconds <= 6:
		return 6
	default:
		return 8
	}
}

// BuildPrompt renders the animation prompt for one beat.
func BuildPrompt(action, setting, style string) string {
	return fmt.Sprintf("Animate this character performing the following action:\n%s\n\n"+
		"Setting: %s\n"+
		"Style: %s\n"+
		"Maintain character consistency, smooth camera movements, cinematic lighting.",
		action, setting, style)
}
