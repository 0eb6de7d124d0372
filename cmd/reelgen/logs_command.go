package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reelgen/internal/logs"
)

const followWait = 2 * time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var runID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the reelgen log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logs.Path(cfg)
			out := cmd.OutOrStdout()

			chunk, err := logs.Tail(cmd.Context(), path, logs.Options{Offset: -1, Lines: lines, Match: runID})
			if err != nil {
				return err
			}
			for _, line := range chunk.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}

			offset := chunk.Offset
			for {
				chunk, err := logs.Tail(cmd.Context(), path, logs.Options{Offset: offset, Wait: followWait, Match: runID})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if err != nil {
					return err
				}
				for _, line := range chunk.Lines {
					fmt.Fprintln(out, line)
				}
				offset = chunk.Offset
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&runID, "run", "", "Only show lines mentioning this run id")
	return cmd
}
