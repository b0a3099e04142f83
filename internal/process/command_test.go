package process

import (
	"context"
	"runtime"
	"strings"
	"testing"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like shell")
	}
}

func TestBuildCommand_ExplicitShellNoDoubleWrap(t *testing.T) {
	requireUnix(t)
	cmd := BuildCommand(context.Background(), "sh -c 'echo hi'")
	if len(cmd.Args) < 3 {
		t.Fatalf("unexpected argv: %#v", cmd.Args)
	}
	if cmd.Args[1] != "-c" {
		t.Fatalf("expected -c as second arg, got %#v", cmd.Args)
	}
	if strings.HasPrefix(cmd.Args[2], "sh -c ") || strings.HasPrefix(cmd.Args[2], "/bin/sh -c ") {
		t.Fatalf("command was double-wrapped: %q", cmd.Args[2])
	}
	if cmd.Args[2] != "echo hi" {
		t.Fatalf("outer quotes not stripped: %q", cmd.Args[2])
	}
}

func TestBuildCommand_MetacharTriggersShell(t *testing.T) {
	requireUnix(t)
	cmd := BuildCommand(context.Background(), `"/opt/lando/bin/lando" start`)
	if len(cmd.Args) < 3 || cmd.Args[1] != "-c" {
		t.Fatalf("expected shell -c wrapping, got argv=%#v", cmd.Args)
	}
}

func TestBuildCommand_PlainArgv(t *testing.T) {
	requireUnix(t)
	cmd := BuildCommand(context.Background(), "lando rebuild -y")
	want := []string{"lando", "rebuild", "-y"}
	if len(cmd.Args) != len(want) {
		t.Fatalf("argv=%#v", cmd.Args)
	}
	for i := range want {
		if cmd.Args[i] != want[i] {
			t.Fatalf("argv=%#v", cmd.Args)
		}
	}
	if cmd.SysProcAttr == nil || !cmd.SysProcAttr.Setpgid {
		t.Fatalf("expected a dedicated process group")
	}
	if cmd.Cancel == nil || cmd.WaitDelay != waitDelay {
		t.Fatalf("expected group kill on cancel and a wait delay")
	}
}

func TestBuildCommand_EmptyIsTrue(t *testing.T) {
	requireUnix(t)
	cmd := BuildCommand(context.Background(), "   ")
	if err := cmd.Run(); err != nil {
		t.Fatalf("empty command should succeed: %v", err)
	}
}
