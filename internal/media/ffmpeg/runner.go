package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes an external command. Errors must wrap
// exec.ErrNotFound when the binary is missing.
type CommandRunner func(ctx context.Context, name string, args ...string) error

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(strings.TrimSpace(string(output)), 600))
	}
	return nil
}

func tail(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return "..." + value[len(value)-limit:]
}
