package process

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Wait keeps draining pipes after the child was
// killed. Grandchildren that escaped the process group may hold them open.
const waitDelay = 5 * time.Second

// BuildCommand constructs an *exec.Cmd for a fully formed command line.
// It avoids invoking a shell when not necessary, and it also respects
// an explicit shell invocation already present in the command string
// (e.g., "sh -c 'echo hi'"), avoiding double-wrapping with another shell.
// The returned command is bound to ctx; cancelling ctx kills the child's
// process group.
func BuildCommand(ctx context.Context, command string) *exec.Cmd {
	cmd := buildCommand(ctx, command)
	configureSysProcAttr(cmd)
	cmd.WaitDelay = waitDelay
	return cmd
}

func buildCommand(ctx context.Context, command string) *exec.Cmd {
	cmdStr := strings.TrimSpace(command)
	if cmdStr == "" {
		return trueCommand(ctx)
	}
	if afterC, ok := parseExplicitShell(cmdStr); ok {
		return shellCommand(ctx, afterC)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		return shellCommand(ctx, cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.CommandContext(ctx, parts[0], parts[1:]...)
}

// parseExplicitShell detects patterns like "sh -c <ARG>" or "/bin/sh -c <ARG>" at the
// beginning of cmdStr and returns the script after "-c" verbatim.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if !strings.HasPrefix(trim, p) {
			continue
		}
		after := trim[len(p):]
		// strip one pair of outer quotes so the shell parses the script itself
		if n := len(after); n >= 2 {
			if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
				after = after[1 : n-1]
			}
		}
		return after, true
	}
	return "", false
}

// mergeEnv returns nil (inherit) when there is nothing to add.
func mergeEnv(extra []string) []string {
	if len(extra) == 0 {
		return nil
	}
	return append(os.Environ(), extra...)
}

// Shell pairs quick and streamed execution behind one value.
type Shell struct {
	*Runner
	*Streamer
}

func NewShell(runner RunnerConfig, streamer StreamerConfig) Shell {
	return Shell{Runner: NewRunner(runner), Streamer: NewStreamer(streamer)}
}
