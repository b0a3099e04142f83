package operation

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/loykin/landodeck/internal/metrics"
)

// siteLocks serializes operations per site. Different sites never contend.
// An entry lives only while someone holds or waits for it.
type siteLocks struct {
	mu    sync.Mutex
	locks map[string]*siteLock
}

type siteLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newSiteLocks() *siteLocks {
	return &siteLocks{locks: make(map[string]*siteLock)}
}

func (l *siteLocks) ref(site string) *siteLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[site]
	if !ok {
		e = &siteLock{sem: semaphore.NewWeighted(1)}
		l.locks[site] = e
	}
	e.refs++
	return e
}

func (l *siteLocks) unref(site string, e *siteLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, site)
	}
}

func (l *siteLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// acquire takes the site lock, calling onWait first when it is held by someone
// else. The returned func releases it.
func (l *siteLocks) acquire(ctx context.Context, site string, onWait func()) (func(), error) {
	e := l.ref(site)
	release := func() {
		e.sem.Release(1)
		l.unref(site, e)
	}
	if e.sem.TryAcquire(1) {
		return release, nil
	}
	if onWait != nil {
		onWait()
	}
	start := time.Now()
	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.unref(site, e)
		return nil, err
	}
	metrics.ObserveLockWait(time.Since(start))
	return release, nil
}
