package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"reelgen/internal/config"
	"reelgen/internal/deps"
	"reelgen/internal/platform"
	"reelgen/internal/services"
	"reelgen/internal/storygen"
)

const (
	platformCheckTimeout = 15 * time.Second
	storyCheckTimeout    = 30 * time.Second
)

// CheckPlatform verifies that credentials can be discovered and exchanged
// for an access token.
func CheckPlatform(ctx context.Context, cfg *config.Config, opts ...platform.Option) Result {
	const name = "Generation platform"

	pc, err := platform.New(platform.ConfigFrom(cfg), opts...)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, platformCheckTimeout)
	defer cancel()

	if _, err := pc.Token(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err, "token exchange")}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s/%s (credentials: %s)", pc.ProjectID(), pc.Location(), pc.CredentialSource()),
	}
}

// CheckStoryLLM verifies that the story LLM is reachable and the key is valid.
// It uses a single attempt with no retries.
func CheckStoryLLM(ctx context.Context, cfg config.Story, opts ...storygen.ClientOption) Result {
	const name = "Story LLM"
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, storyCheckTimeout)
	defer cancel()

	client := storygen.NewClient(storygen.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, append([]storygen.ClientOption{storygen.WithRetryMaxAttempts(1)}, opts...)...)

	if _, err := client.Complete(checkCtx, "Reply with the single word OK.", 0, false); err != nil {
		return Result{Name: name, Detail: summarizeError(err, "health check")}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries reelgen shells out to.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	statuses := []deps.Status{deps.ResolveFFmpeg(cfg.Media.FFmpegBinary, cfg.Media.FallbackFFmpegBinary)}
	return append(statuses, deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFprobe",
			Command:     cfg.Media.FFprobeBinary,
			Description: "Used to summarize the stitched reel",
			Optional:    true,
		},
	})...)
}

func summarizeError(err error, what string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return what + " timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return what + " timed out (endpoint unreachable)"
	}
	switch {
	case errors.Is(err, services.ErrAuth):
		return "authentication failed: " + err.Error()
	case errors.Is(err, services.ErrConfiguration):
		return "configuration error: " + err.Error()
	}
	return err.Error()
}
