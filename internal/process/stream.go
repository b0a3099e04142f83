package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxLine is the longest unterminated run delivered as a single line.
const DefaultMaxLine = 1024 * 1024

// ExitError reports a child that ran and exited with a non-zero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("Process exited with code %d", e.Code)
}

// StreamerConfig tunes line delivery.
type StreamerConfig struct {
	MaxLine int      `json:"max_line" mapstructure:"max_line"`
	Env     []string `json:"env" mapstructure:"env"`
}

// Streamer runs long commands and forwards their output line by line.
type Streamer struct {
	maxLine int
	env     []string
}

func NewStreamer(cfg StreamerConfig) *Streamer {
	s := &Streamer{maxLine: cfg.MaxLine, env: cfg.Env}
	if s.maxLine <= 0 {
		s.maxLine = DefaultMaxLine
	}
	return s
}

// Stream runs command in dir and calls onLine for every non-blank sanitized line
// of stdout and stderr, in arrival order. Calls to onLine never overlap.
//
// It returns nil on exit 0, *ExitError on a non-zero exit, ctx.Err() when the
// context ended first (the process group is killed), or the spawn error.
func (s *Streamer) Stream(ctx context.Context, command, dir string, onLine func(string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var mu sync.Mutex
	emit := func(raw []byte) {
		line := strings.TrimRight(Sanitize(string(raw)), " \t")
		if strings.TrimSpace(line) == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onLine(line)
	}

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	closeWriters := func() {
		_ = outW.Close()
		_ = errW.Close()
	}

	var g errgroup.Group
	g.Go(func() error { return s.drain(outR, emit) })
	g.Go(func() error { return s.drain(errR, emit) })

	cmd := BuildCommand(ctx, command)
	cmd.Dir = dir
	cmd.Env = mergeEnv(s.env)
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		closeWriters()
		_ = g.Wait()
		return err
	}
	waitErr := cmd.Wait()
	closeWriters()
	readErr := g.Wait()

	if waitErr == nil {
		return readErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if code, ok := exitCode(waitErr); ok {
		return &ExitError{Code: code}
	}
	return waitErr
}

func (s *Streamer) drain(r io.Reader, emit func([]byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), s.maxLine)
	sc.Split(splitLines(s.maxLine))
	for sc.Scan() {
		emit(sc.Bytes())
	}
	err := sc.Err()
	// keep the writer unblocked even if scanning stopped early
	_, _ = io.Copy(io.Discard, r)
	return err
}

// splitLines is a bufio.SplitFunc that ends a line at "\n", "\r\n" or a lone
// "\r", and cuts unterminated runs of max bytes at a rune boundary.
func splitLines(max int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
			if data[i] == '\n' {
				return i + 1, data[:i], nil
			}
			// '\r': need one more byte to tell "\r\n" from a lone "\r"
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if atEOF {
				return i + 1, data[:i], nil
			}
			if len(data) < max {
				return 0, nil, nil
			}
		}
		if len(data) >= max {
			cut := max
			j := cut - 1
			for j > 0 && j > cut-utf8.UTFMax && !utf8.RuneStart(data[j]) {
				j--
			}
			if !utf8.FullRune(data[j:cut]) && j > 0 {
				cut = j
			}
			return cut, data[:cut], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

func exitCode(err error) (int, bool) {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), true
	}
	return 0, false
}
