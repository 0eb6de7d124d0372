package main

import (
	"github.com/spf13/cobra"

	"reelgen/internal/platform"
)

// rootOption adjusts command wiring; tests use it to inject credentials.
type rootOption func(*commandContext)

func withPlatformOptions(opts ...platform.Option) rootOption {
	return func(c *commandContext) {
		c.platformOpts = append(c.platformOpts, opts...)
	}
}

func newRootCommand(opts ...rootOption) *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var logFormatFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag, &logFormatFlag)
	for _, opt := range opts {
		opt(ctx)
	}

	rootCmd := &cobra.Command{
		Use:           "reelgen",
		Short:         "Generate short vertical reels from a story outline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Override logging.format (console, json)")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newVideosCommand(ctx))
	rootCmd.AddCommand(newStitchCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
