package process

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

const (
	DefaultTimeout   = 300 * time.Second
	DefaultMaxOutput = 10 * 1024 * 1024
)

// ErrMaxOutput is reported when a command writes more than the configured buffer.
var ErrMaxOutput = errors.New("maxBuffer exceeded")

// RunnerConfig bounds quick commands.
type RunnerConfig struct {
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxOutput int           `json:"max_output" mapstructure:"max_output"` // bytes per stream
	Env       []string      `json:"env" mapstructure:"env"`               // appended to the inherited environment
}

// Result is the captured outcome of a quick command. It is never an error value:
// failures are described by Success and Error.
type Result struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Error   string `json:"error,omitempty"`
}

// Runner executes short-lived commands to completion and captures their output.
type Runner struct {
	timeout   time.Duration
	maxOutput int
	env       []string
}

func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{timeout: cfg.Timeout, maxOutput: cfg.MaxOutput, env: cfg.Env}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.maxOutput <= 0 {
		r.maxOutput = DefaultMaxOutput
	}
	return r
}

// Timeout reports the wall-clock limit applied to each command.
func (r *Runner) Timeout() time.Duration { return r.timeout }

// Run executes command in dir (empty means the current directory).
func (r *Runner) Run(ctx context.Context, command, dir string) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var overflow atomic.Bool
	onOverflow := func() {
		overflow.Store(true)
		cancel()
	}
	stdout := &limitBuffer{max: r.maxOutput, onOverflow: onOverflow}
	stderr := &limitBuffer{max: r.maxOutput, onOverflow: onOverflow}

	cmd := BuildCommand(ctx, command)
	cmd.Dir = dir
	cmd.Env = mergeEnv(r.env)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	switch {
	case err == nil && !overflow.Load():
		res.Success = true
	case overflow.Load():
		res.Error = ErrMaxOutput.Error()
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Error = fmt.Sprintf("command timed out after %s", r.timeout)
	case ctx.Err() != nil:
		res.Error = ctx.Err().Error()
	default:
		if _, ok := exitCode(err); ok {
			res.Error = fmt.Sprintf("Command failed: %s\n%s", command, res.Stderr)
		} else {
			res.Error = err.Error()
		}
	}
	return res
}

// limitBuffer collects up to max bytes and reports overflow once. Writes past
// the limit are discarded but acknowledged so the copier keeps draining.
type limitBuffer struct {
	buf        strings.Builder
	max        int
	over       bool
	onOverflow func()
}

func (b *limitBuffer) Write(p []byte) (int, error) {
	if b.over {
		return len(p), nil
	}
	if room := b.max - b.buf.Len(); len(p) > room {
		b.buf.Write(p[:room])
		b.over = true
		if b.onOverflow != nil {
			b.onOverflow()
		}
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *limitBuffer) String() string { return b.buf.String() }
