//go:build windows

package process

import (
	"context"
	"os/exec"
)

// shellCommand returns a shell command for Windows systems
func shellCommand(ctx context.Context, script string) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "cmd", "/C", script)
}

// trueCommand returns a command that always succeeds on Windows systems
func trueCommand(ctx context.Context) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "cmd", "/C", "exit 0")
}
