package operation

import (
	"context"
	"errors"
)

// Executor runs work against an operation record and completes the record
// from the outcome. Manager finishes every launched operation through it.
type Executor struct {
	reg      *Registry
	streamer LineStreamer
}

func NewExecutor(reg *Registry, streamer LineStreamer) *Executor {
	return &Executor{reg: reg, streamer: streamer}
}

// RunStreaming creates the record for id, streams command output into it and
// completes it from the exit status. A non-zero exit completes the record with
// "Process exited with code N" and returns that error; a spawn failure records
// and returns the spawn error.
func (e *Executor) RunStreaming(ctx context.Context, id, command, dir string) error {
	rec, err := e.reg.Create(id, Meta{Kind: "command"})
	if err != nil {
		return err
	}
	return e.Execute(ctx, rec, func(ctx context.Context, op *Op) error {
		return op.Stream(ctx, command, dir)
	})
}

// Execute runs task against rec and completes it: nil succeeds, cancellation
// ends it cancelled, anything else fails it with the error text. The task
// error is returned as is.
func (e *Executor) Execute(ctx context.Context, rec *Record, task Task) error {
	err := task(ctx, &Op{rec: rec, reg: e.reg, streamer: e.streamer})
	switch {
	case err == nil:
		_ = e.reg.Complete(rec.id, true, "")
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		_ = e.reg.Cancelled(rec.id, CancelledMessage)
	default:
		_ = e.reg.Complete(rec.id, false, err.Error())
	}
	return err
}
