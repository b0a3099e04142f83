package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventFinished EventType = "finished"
)

// Record summarizes one finished operation. Output lines are not exported,
// only their count.
type Record struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Site       string    `json:"site"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Lines      int       `json:"lines"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration is FinishedAt minus StartedAt, or zero when either is unset.
func (r Record) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
