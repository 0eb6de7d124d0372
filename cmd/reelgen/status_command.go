package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelgen/internal/config"
	"reelgen/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check dependencies, credentials and run artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var lines []string
			failures := 0

			lines = append(lines, renderSectionHeader("Configuration", colorize)...)
			lines = append(lines, renderStatusLine("Project", projectKind(cfg), valueOr(cfg.Platform.ProjectID, "not set"), colorize))
			lines = append(lines, renderStatusLine("Location", statusInfo, cfg.Platform.Location, colorize))
			lines = append(lines, renderStatusLine("Video model", statusInfo, cfg.Video.Model, colorize))
			lines = append(lines, renderStatusLine("Aspect ratio", statusInfo, cfg.Video.AspectRatio, colorize))
			lines = append(lines, renderStatusLine("Download remote", statusInfo, yesNo(cfg.Video.DownloadRemote), colorize))
			lines = append(lines, renderStatusLine("Notifications", statusInfo, valueOr(cfg.Notifications.NtfyTopic, "disabled"), colorize))

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			for _, dep := range preflight.CheckSystemDeps(cfg) {
				kind := statusOK
				message := dep.Command
				switch {
				case !dep.Available && dep.Optional:
					kind = statusWarn
					message = dep.Detail
				case !dep.Available:
					kind = statusError
					message = dep.Detail
					failures++
				case dep.Detail != "":
					kind = statusWarn
					message = fmt.Sprintf("%s (%s)", dep.Command, dep.Detail)
				}
				lines = append(lines, renderStatusLine(dep.Name, kind, message, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Services", colorize)...)
			checks := []preflight.Result{}
			if !offline {
				checks = preflight.RunAll(cmd.Context(), cfg)
			} else {
				for _, dir := range []struct{ name, path string }{
					{"Characters directory", cfg.Paths.CharactersDir},
					{"Videos directory", cfg.Paths.VideosDir},
					{"State directory", cfg.Paths.StateDir},
				} {
					checks = append(checks, preflight.CheckDirectoryAccess(dir.name, dir.path))
				}
			}
			for _, check := range checks {
				kind := statusOK
				if !check.Passed {
					kind = statusError
					failures++
				}
				lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Workspace", colorize)...)
			for _, item := range preflight.CheckWorkspace(cfg) {
				kind := statusOK
				if !item.Passed {
					kind = statusInfo
				}
				lines = append(lines, renderStatusLine(item.Name, kind, item.Detail, colorize))
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			if failures > 0 {
				return fmt.Errorf("%d readiness check(s) failed", failures)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip credential and API checks")
	return cmd
}

func projectKind(cfg *config.Config) statusKind {
	if strings.TrimSpace(cfg.Platform.ProjectID) == "" {
		return statusWarn
	}
	return statusOK
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
