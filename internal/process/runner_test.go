package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Success(t *testing.T) {
	requireUnix(t)
	r := NewRunner(RunnerConfig{})
	res := r.Run(context.Background(), "echo hello", "")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.Empty(t, res.Error)
	assert.Equal(t, DefaultTimeout, r.Timeout())
}

func TestRunner_WorkingDirectory(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	res := NewRunner(RunnerConfig{}).Run(context.Background(), "pwd", dir)
	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.Stdout, dir)
}

func TestRunner_NonZeroExit(t *testing.T) {
	requireUnix(t)
	cmd := "sh -c 'echo oops >&2; exit 3'"
	res := NewRunner(RunnerConfig{}).Run(context.Background(), cmd, "")
	assert.False(t, res.Success)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.Equal(t, "Command failed: "+cmd+"\noops\n", res.Error)
}

func TestRunner_SpawnFailure(t *testing.T) {
	res := NewRunner(RunnerConfig{}).Run(context.Background(), "landodeck-no-such-binary-xyz", "")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestRunner_Timeout(t *testing.T) {
	requireUnix(t)
	r := NewRunner(RunnerConfig{Timeout: 200 * time.Millisecond})
	start := time.Now()
	res := r.Run(context.Background(), "sh -c 'echo partial >&2; sleep 30'", "")
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, "command timed out after 200ms", res.Error)
	assert.Equal(t, "partial\n", res.Stderr)
}

func TestRunner_MaxOutput(t *testing.T) {
	requireUnix(t)
	r := NewRunner(RunnerConfig{MaxOutput: 100})
	res := r.Run(context.Background(), "sh -c 'yes | head -c 5000'", "")
	assert.False(t, res.Success)
	assert.Equal(t, ErrMaxOutput.Error(), res.Error)
	assert.Len(t, res.Stdout, 100)
}

func TestRunner_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, NewRunner(RunnerConfig{}).Timeout())
	assert.Equal(t, 5*time.Second, NewRunner(RunnerConfig{Timeout: 5 * time.Second}).Timeout())
}

func TestLimitBuffer(t *testing.T) {
	calls := 0
	b := &limitBuffer{max: 4, onOverflow: func() { calls++ }}
	n, err := b.Write([]byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = b.Write([]byte("cdef"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	_, _ = b.Write([]byte("gh"))
	assert.Equal(t, "abcd", b.String())
	assert.Equal(t, 1, calls)
}
