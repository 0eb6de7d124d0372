package deps

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ResolveFFmpeg reports the ffmpeg binary the stitcher will execute.
//
// The configured binary wins when it resolves on PATH. Otherwise the
// fallback binary is used if it exists and is executable, matching the
// concatenator's behaviour when the primary binary is missing.
func ResolveFFmpeg(binary, fallback string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Required for stitching and last-frame extraction",
	}

	primary := strings.TrimSpace(binary)
	if primary == "" {
		primary = "ffmpeg"
	}
	if resolved, err := exec.LookPath(primary); err == nil {
		result.Command = resolved
		result.Available = true
		return result
	}

	if alt := strings.TrimSpace(fallback); alt != "" {
		if resolved, ok := resolveExecutable(alt); ok {
			result.Command = resolved
			result.Available = true
			result.Detail = fmt.Sprintf("binary %q not found, using fallback", primary)
			return result
		}
	}

	result.Command = primary
	result.Detail = fmt.Sprintf("binary %q not found", primary)
	return result
}

func resolveExecutable(command string) (string, bool) {
	if strings.ContainsRune(command, os.PathSeparator) {
		info, err := os.Stat(command)
		if err != nil || !isExecutable(info) {
			return "", false
		}
		return command, true
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return "", false
	}
	return resolved, true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
