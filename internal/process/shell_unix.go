//go:build !windows

package process

import (
	"context"
	"os/exec"
)

// shellCommand returns a shell command for Unix systems
func shellCommand(ctx context.Context, script string) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "/bin/sh", "-c", script)
}

// trueCommand returns a command that always succeeds on Unix systems
func trueCommand(ctx context.Context) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "/bin/true")
}
