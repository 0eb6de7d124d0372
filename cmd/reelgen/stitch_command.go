package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelgen/internal/config"
	"reelgen/internal/reel"
)

func newStitchCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "stitch",
		Short: "Join existing beat clips into the final reel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			target := cfg.Paths.FinalOutput
			if strings.TrimSpace(output) != "" {
				if target, err = config.ExpandPath(output); err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}
			}

			clips, err := reel.ExistingClips(cfg.Paths.VideosDir)
			if err != nil {
				return fmt.Errorf("list clips: %w", err)
			}
			if len(clips) == 0 {
				return errors.New("no beat clips found in " + cfg.Paths.VideosDir)
			}

			result, probe, err := stitchClips(cmd.Context(), cfg, logger, clips, target)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Stitched %d clips into %s\n", len(clips), result)
			if probe != nil {
				fmt.Fprintf(out, "Reel: %s\n", describeProbe(*probe))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Override paths.final_output")
	return cmd
}
