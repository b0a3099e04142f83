package operation

import (
	"context"
	"fmt"
)

// LineStreamer runs a command and reports each output line.
type LineStreamer interface {
	Stream(ctx context.Context, command, dir string, onLine func(string)) error
}

// Op is the handle a running task writes its progress through.
type Op struct {
	rec      *Record
	reg      *Registry
	streamer LineStreamer
}

func (o *Op) ID() string   { return o.rec.id }
func (o *Op) Kind() string { return o.rec.meta.Kind }
func (o *Op) Site() string { return o.rec.meta.Site }

// Append adds lines to the operation log. Lines written after completion are dropped.
func (o *Op) Append(lines ...string) {
	_ = o.reg.Append(o.rec.id, lines...)
}

// Line appends a single line; it has the onLine shape streamers expect.
func (o *Op) Line(line string) {
	o.Append(line)
}

func (o *Op) Logf(format string, args ...any) {
	o.Append(fmt.Sprintf(format, args...))
}

// Stream runs command in dir and appends its output.
func (o *Op) Stream(ctx context.Context, command, dir string) error {
	return o.streamer.Stream(ctx, command, dir, o.Line)
}
