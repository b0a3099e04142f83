package operation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteLocks_DropReleasedSites(t *testing.T) {
	l := newSiteLocks()
	for i := 0; i < 100; i++ {
		release, err := l.acquire(context.Background(), fmt.Sprintf("site-%d", i), nil)
		require.NoError(t, err)
		release()
	}
	assert.Equal(t, 0, l.size())
}

func TestSiteLocks_KeepEntryWhileWaiting(t *testing.T) {
	l := newSiteLocks()
	first, err := l.acquire(context.Background(), "demo", nil)
	require.NoError(t, err)

	waiting := make(chan struct{})
	acquired := make(chan func())
	go func() {
		release, err := l.acquire(context.Background(), "demo", func() { close(waiting) })
		if err != nil {
			close(acquired)
			return
		}
		acquired <- release
	}()
	<-waiting

	first()
	assert.Equal(t, 1, l.size(), "waiter keeps the entry")
	second, ok := <-acquired
	require.True(t, ok)

	third := make(chan struct{})
	go func() {
		if release, err := l.acquire(context.Background(), "demo", nil); err == nil {
			release()
		}
		close(third)
	}()
	select {
	case <-third:
		t.Fatal("lock was taken twice")
	case <-time.After(50 * time.Millisecond):
	}

	second()
	<-third
	require.Eventually(t, func() bool { return l.size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSiteLocks_CancelledWaiterLeavesNoEntry(t *testing.T) {
	l := newSiteLocks()
	release, err := l.acquire(context.Background(), "demo", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.acquire(ctx, "demo", nil)
	require.ErrorIs(t, err, context.Canceled)

	release()
	assert.Equal(t, 0, l.size())
}
