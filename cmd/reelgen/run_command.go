package main

import (
	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		theme          string
		duration       int
		skipStory      bool
		skipCharacters bool
		skipVideos     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a story, characters and clips, then stitch the reel",
		Long: `Run the full workflow: draft a story outline, render the character
reference and first-beat portrait, render one clip per beat with continuity
chaining, and stitch the clips into the final reel.

Skip flags reuse what earlier runs left on disk. Exit status is 0 when every
beat rendered, 2 when some beats failed and 1 when nothing usable was made.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runWorkflow(cmd.Context(), ctx, workflowOptions{
				command:  "run",
				theme:    theme,
				duration: duration,
				stages: stages{
					story:      !skipStory,
					characters: !skipCharacters,
					videos:     !skipVideos,
					stitch:     true,
				},
			}, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVar(&theme, "theme", "", `Story theme ("auto" asks the model to suggest one)`)
	cmd.Flags().IntVar(&duration, "duration", 0, "Target reel length in seconds")
	cmd.Flags().BoolVar(&skipStory, "skip-story", false, "Reuse the existing story file")
	cmd.Flags().BoolVar(&skipCharacters, "skip-characters", false, "Reuse existing character images")
	cmd.Flags().BoolVar(&skipVideos, "skip-videos", false, "Reuse existing clips and only stitch")
	return cmd
}

func newVideosCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "videos",
		Short: "Render clips for the existing story without stitching",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runWorkflow(cmd.Context(), ctx, workflowOptions{
				command: "videos",
				stages:  stages{videos: true},
			}, cmd.OutOrStdout())
			return err
		},
	}
}
