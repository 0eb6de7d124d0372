package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	cancel()
	os.Exit(exitCode(err))
}

// exitCode prints err and maps it to the process status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var statusErr *runStatusError
	if errors.As(err, &statusErr) {
		fmt.Fprintln(os.Stderr, statusErr.Error())
		return statusErr.code
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	return 1
}

// runStatusError carries a non-zero exit status for runs that finished but
// did not render every beat.
type runStatusError struct {
	code    int
	message string
}

func (e *runStatusError) Error() string { return e.message }
