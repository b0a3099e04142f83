package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/loykin/landodeck/internal/metrics"
)

var (
	ErrNotFound  = errors.New("operation not found")
	ErrExists    = errors.New("operation already exists")
	ErrCompleted = errors.New("operation already completed")
)

const (
	DefaultRetention       = 30 * time.Minute
	DefaultMaxRecords      = 500
	DefaultCleanupInterval = time.Minute
)

// RegistryConfig bounds how long finished records are kept.
type RegistryConfig struct {
	Retention       time.Duration `json:"retention" mapstructure:"retention"`
	MaxRecords      int           `json:"max_records" mapstructure:"max_records"`
	CleanupInterval time.Duration `json:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// Registry is the in-memory table of operation records. It is safe for
// concurrent use; a record's log can be read while its producer appends.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
	cfg     RegistryConfig
	now     func() time.Time
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	return &Registry{
		records: make(map[string]*Record),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Create registers an empty, running record.
func (r *Registry) Create(id string, meta Meta) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, id)
	}
	rec := newRecord(id, meta, r.now())
	r.records[id] = rec
	r.order = append(r.order, id)
	metrics.SetRecords(len(r.records))
	return rec, nil
}

func (r *Registry) lookup(id string) (*Record, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// Append adds lines to a running record.
func (r *Registry) Append(id string, lines ...string) error {
	rec, err := r.lookup(id)
	if err != nil {
		return err
	}
	if err := rec.append(lines); err != nil {
		return fmt.Errorf("append %s: %w", id, err)
	}
	metrics.AddLines(rec.meta.Kind, len(lines))
	return nil
}

// Complete moves a record to succeeded or failed. errText is ignored on success.
func (r *Registry) Complete(id string, success bool, errText string) error {
	rec, err := r.lookup(id)
	if err != nil {
		return err
	}
	if success {
		errText = ""
	}
	if err := rec.finish(success, false, errText, r.now()); err != nil {
		return fmt.Errorf("complete %s: %w", id, err)
	}
	return nil
}

// Cancelled moves a record to the cancelled terminal state.
func (r *Registry) Cancelled(id, errText string) error {
	rec, err := r.lookup(id)
	if err != nil {
		return err
	}
	if errText == "" {
		errText = CancelledMessage
	}
	if err := rec.finish(false, true, errText, r.now()); err != nil {
		return fmt.Errorf("cancel %s: %w", id, err)
	}
	return nil
}

// Get returns a full snapshot of the record.
func (r *Registry) Get(id string) (Snapshot, error) {
	return r.SnapshotSince(id, 0)
}

// SnapshotSince returns the lines after offset, for incremental polling.
func (r *Registry) SnapshotSince(id string, offset int) (Snapshot, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return rec.Snapshot(offset), nil
}

// Wait blocks until the record completes or ctx ends.
func (r *Registry) Wait(ctx context.Context, id string) (Snapshot, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	select {
	case <-rec.Done():
		return rec.Snapshot(0), nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// List returns summaries in creation order.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	recs := make([]*Record, 0, len(r.order))
	for _, id := range r.order {
		recs = append(recs, r.records[id])
	}
	r.mu.RUnlock()
	out := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Summary())
	}
	return out
}

// Len reports the number of records currently held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Evict drops completed records finished more than Retention before now, then
// the oldest completed records while more than MaxRecords remain. Running
// records are never evicted.
func (r *Registry) Evict(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	type done struct {
		id string
		at time.Time
	}
	var finished []done
	drop := make(map[string]bool)
	for id, rec := range r.records {
		completed, at := rec.completed()
		if !completed {
			continue
		}
		if now.Sub(at) > r.cfg.Retention {
			drop[id] = true
			continue
		}
		finished = append(finished, done{id: id, at: at})
	}
	if excess := len(r.records) - len(drop) - r.cfg.MaxRecords; excess > 0 {
		sort.Slice(finished, func(i, j int) bool { return finished[i].at.Before(finished[j].at) })
		for i := 0; i < excess && i < len(finished); i++ {
			drop[finished[i].id] = true
		}
	}
	if len(drop) == 0 {
		return 0
	}

	kept := r.order[:0]
	for _, id := range r.order {
		if drop[id] {
			delete(r.records, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	metrics.SetRecords(len(r.records))
	metrics.AddEvicted(len(drop))
	return len(drop)
}

// RunCleanup evicts expired records every CleanupInterval until ctx ends.
func (r *Registry) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(r.now()); n > 0 {
				slog.Info("Evicted finished operations", "count", n, "remaining", r.Len())
			}
		}
	}
}
