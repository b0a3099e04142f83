package operation

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Status is the terminal (or current) state of an operation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// CancelledMessage is the error text of a cancelled operation.
const CancelledMessage = "Operation cancelled"

// Meta describes what an operation acts on.
type Meta struct {
	Kind string `json:"kind"`
	Site string `json:"site"`
}

// state is published whole; a pointer to it is never mutated after Store.
type state struct {
	lines      []string
	completed  bool
	success    bool
	cancelled  bool
	errText    string
	finishedAt time.Time
}

// Record is the progress log of one operation. Writers are serialized by mu;
// readers load the current state without locking.
type Record struct {
	id        string
	meta      Meta
	startedAt time.Time

	mu   sync.Mutex
	st   atomic.Pointer[state]
	done chan struct{}
}

func newRecord(id string, meta Meta, now time.Time) *Record {
	r := &Record{id: id, meta: meta, startedAt: now, done: make(chan struct{})}
	r.st.Store(&state{})
	return r
}

func (r *Record) ID() string { return r.id }

func (r *Record) Meta() Meta { return r.meta }

// Done is closed once the record reaches a terminal state.
func (r *Record) Done() <-chan struct{} { return r.done }

func (r *Record) append(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.st.Load()
	if cur.completed {
		return ErrCompleted
	}
	next := *cur
	// append never rewrites elements below len(cur.lines), which is all an
	// older state can see
	next.lines = append(cur.lines, lines...)
	r.st.Store(&next)
	return nil
}

func (r *Record) finish(success, cancelled bool, errText string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.st.Load()
	if cur.completed {
		return ErrCompleted
	}
	next := *cur
	next.lines = cur.lines[:len(cur.lines):len(cur.lines)]
	next.completed = true
	next.success = success
	next.cancelled = cancelled
	next.errText = errText
	next.finishedAt = now
	r.st.Store(&next)
	close(r.done)
	return nil
}

func (r *Record) completed() (bool, time.Time) {
	st := r.st.Load()
	return st.completed, st.finishedAt
}

// Snapshot is a consistent, caller-owned copy of a record.
type Snapshot struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Site       string     `json:"site"`
	Lines      []string   `json:"lines"`
	Total      int        `json:"total"`
	Completed  bool       `json:"completed"`
	Success    *bool      `json:"success"`
	Error      *string    `json:"error"`
	Cancelled  bool       `json:"cancelled"`
	Status     Status     `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Snapshot returns the lines after offset together with the matching flags.
// An offset past the end yields no lines.
func (r *Record) Snapshot(offset int) Snapshot {
	st := r.st.Load()
	if offset < 0 {
		offset = 0
	}
	if offset > len(st.lines) {
		offset = len(st.lines)
	}
	lines := make([]string, len(st.lines)-offset)
	copy(lines, st.lines[offset:])

	s := Snapshot{
		ID:        r.id,
		Kind:      r.meta.Kind,
		Site:      r.meta.Site,
		Lines:     lines,
		Total:     len(st.lines),
		Completed: st.completed,
		Cancelled: st.cancelled,
		Status:    statusOf(st),
		StartedAt: r.startedAt,
	}
	if st.completed {
		ok := st.success
		s.Success = &ok
		fin := st.finishedAt
		s.FinishedAt = &fin
		if !st.success {
			e := st.errText
			s.Error = &e
		}
	}
	return s
}

// Summary is a record without its lines.
type Summary struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Site       string     `json:"site"`
	Status     Status     `json:"status"`
	Completed  bool       `json:"completed"`
	Success    *bool      `json:"success"`
	Error      string     `json:"error,omitempty"`
	Lines      int        `json:"lines"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

func (r *Record) Summary() Summary {
	snap := r.Snapshot(math.MaxInt)
	s := Summary{
		ID:         snap.ID,
		Kind:       snap.Kind,
		Site:       snap.Site,
		Status:     snap.Status,
		Completed:  snap.Completed,
		Success:    snap.Success,
		Lines:      snap.Total,
		StartedAt:  snap.StartedAt,
		FinishedAt: snap.FinishedAt,
	}
	if snap.Error != nil {
		s.Error = *snap.Error
	}
	return s
}

func statusOf(st *state) Status {
	switch {
	case !st.completed:
		return StatusRunning
	case st.success:
		return StatusSucceeded
	case st.cancelled:
		return StatusCancelled
	default:
		return StatusFailed
	}
}
