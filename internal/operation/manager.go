package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/loykin/landodeck/internal/history"
	"github.com/loykin/landodeck/internal/metrics"
)

// ErrShuttingDown is returned by Launch after Shutdown started.
var ErrShuttingDown = errors.New("operation manager is shutting down")

const sinkTimeout = 5 * time.Second

// Task is the body of an operation. It reports progress through op and
// returns nil on success.
type Task func(ctx context.Context, op *Op) error

// Manager launches tasks as tracked background operations.
type Manager struct {
	reg   *Registry
	exec  *Executor
	locks *siteLocks
	log   *slog.Logger

	base     context.Context
	stopBase context.CancelFunc
	wg       sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	cancels   map[string]context.CancelFunc
	histSinks []history.Sink
}

func NewManager(reg *Registry, streamer LineStreamer) *Manager {
	base, stop := context.WithCancel(context.Background())
	return &Manager{
		reg:      reg,
		exec:     NewExecutor(reg, streamer),
		locks:    newSiteLocks(),
		log:      slog.Default(),
		base:     base,
		stopBase: stop,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// SetLogger replaces the logger used for operation lifecycle lines.
func (m *Manager) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	m.mu.Lock()
	m.log = l
	m.mu.Unlock()
}

// SetHistorySinks configures external history sinks (SQL, OpenSearch, ClickHouse).
// Passing nil or no sinks clears the list.
func (m *Manager) SetHistorySinks(sinks ...history.Sink) {
	m.mu.Lock()
	m.histSinks = append([]history.Sink(nil), sinks...)
	m.mu.Unlock()
}

func (m *Manager) Registry() *Registry { return m.reg }

// Launch registers a new operation and runs task in the background. It returns
// as soon as the record exists; the record is empty and running at that point.
func (m *Manager) Launch(kind, site string, task Task) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrShuttingDown
	}
	id := NewID(kind, site, time.Now())
	rec, err := m.reg.Create(id, Meta{Kind: kind, Site: site})
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	ctx, cancel := context.WithCancel(m.base)
	m.cancels[id] = cancel
	log := m.log
	m.wg.Add(1)
	m.mu.Unlock()

	metrics.OperationStarted(kind)
	log.Info("Operation started", "id", id, "kind", kind, "site", site)

	go m.run(ctx, cancel, rec, task)
	return id, nil
}

// Cancel stops a running operation. The record ends cancelled.
func (m *Manager) Cancel(id string) error {
	rec, err := m.reg.lookup(id)
	if err != nil {
		return err
	}
	if done, _ := rec.completed(); done {
		return fmt.Errorf("cancel %s: %w", id, ErrCompleted)
	}
	m.mu.Lock()
	cancel, ok := m.cancels[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("cancel %s: %w", id, ErrCompleted)
	}
	cancel()
	return nil
}

// Shutdown cancels every running operation and waits for them to finish
// recording their outcome, or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.stopBase()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, rec *Record, task Task) {
	defer m.wg.Done()
	defer func() {
		cancel()
		m.mu.Lock()
		delete(m.cancels, rec.id)
		m.mu.Unlock()
	}()

	metrics.IncInFlight()
	defer metrics.DecInFlight()

	err := m.exec.Execute(ctx, rec, m.guard(task))
	m.finish(rec, err)
}

// guard wraps task with panic recovery and the per-site lock.
func (m *Manager) guard(task Task) Task {
	return func(ctx context.Context, op *Op) (err error) {
		defer func() {
			if r := recover(); r != nil {
				m.logger().Error("Operation panicked", "id", op.ID(), "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("internal error: %v", r)
			}
		}()

		if site := op.Site(); site != "" {
			release, lockErr := m.locks.acquire(ctx, site, func() {
				op.Logf("Waiting for another operation on %s to finish...", site)
			})
			if lockErr != nil {
				return lockErr
			}
			defer release()
		}
		return task(ctx, op)
	}
}

// finish reports a completed record to metrics, the log and history sinks.
func (m *Manager) finish(rec *Record, taskErr error) {
	snap := rec.Snapshot(math.MaxInt)
	dur := time.Duration(0)
	if snap.FinishedAt != nil {
		dur = snap.FinishedAt.Sub(snap.StartedAt)
	}
	metrics.OperationFinished(snap.Kind, string(snap.Status), dur)

	log := m.logger().With("id", rec.id, "kind", snap.Kind, "site", snap.Site, "duration", dur)
	switch snap.Status {
	case StatusSucceeded:
		log.Info("Operation succeeded")
	case StatusCancelled:
		log.Warn("Operation cancelled")
	default:
		log.Error("Operation failed", "error", taskErr)
	}

	m.sendHistory(snap)
}

func (m *Manager) sendHistory(snap Snapshot) {
	m.mu.Lock()
	sinks := append([]history.Sink(nil), m.histSinks...)
	m.mu.Unlock()
	if len(sinks) == 0 {
		return
	}
	rec := history.Record{
		ID:        snap.ID,
		Kind:      snap.Kind,
		Site:      snap.Site,
		Status:    string(snap.Status),
		Lines:     snap.Total,
		StartedAt: snap.StartedAt,
	}
	if snap.Error != nil {
		rec.Error = *snap.Error
	}
	if snap.FinishedAt != nil {
		rec.FinishedAt = *snap.FinishedAt
	}
	evt := history.Event{Type: history.EventFinished, OccurredAt: time.Now().UTC(), Record: rec}
	for _, s := range sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := s.Send(ctx, evt); err != nil {
			m.logger().Warn("History sink failed", "id", snap.ID, "error", err)
		}
		cancel()
	}
}

func (m *Manager) logger() *slog.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log
}
