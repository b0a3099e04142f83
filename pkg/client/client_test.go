package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDaemon serves an operation whose log grows by one line per poll.
type fakeDaemon struct {
	mu    sync.Mutex
	lines []string
	polls int
	calls []string
}

func (f *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/sites/demo/start":
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "operationId": "start-demo-1"})
	case r.Method == http.MethodPost && r.URL.Path == "/api/sites/demo/migrate-database":
		var req MigrateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.PHP == "" && req.Database == "" && req.PhpMyAdmin == nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "At least one of php, database or phpmyadmin is required"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "operationId": "migrate-demo-1"})
	case r.URL.Path == "/api/operations/start-demo-1/logs":
		f.polls++
		f.lines = append(f.lines, "line "+strconv.Itoa(f.polls))
		since, _ := strconv.Atoi(r.URL.Query().Get("since"))
		done := f.polls >= 3
		resp := map[string]any{
			"success":          true,
			"logs":             f.lines[since:],
			"completed":        done,
			"operationSuccess": nil,
			"error":            nil,
			"total":            len(f.lines),
		}
		if done {
			resp["operationSuccess"] = true
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.URL.Path == "/api/sites":
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "sites": []Site{{App: "demo", Recipe: "lamp"}}})
	case r.URL.Path == "/api/operations":
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "operations": []OperationSummary{}})
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "Route " + r.URL.Path + " not found"})
	}
}

func newTestClient(t *testing.T) (*Client, *fakeDaemon) {
	t.Helper()
	d := &fakeDaemon{}
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/api/"}), d
}

func TestLifecycleAndFollow(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	id, err := c.Lifecycle(ctx, "demo", "start")
	require.NoError(t, err)
	assert.Equal(t, "start-demo-1", id)

	var got []string
	final, err := c.Follow(ctx, id, time.Millisecond, func(l string) { got = append(got, l) })
	require.NoError(t, err)
	assert.True(t, final.Succeeded())
	assert.Equal(t, []string{"line 1", "line 2", "line 3"}, got)

	_, err = c.Lifecycle(ctx, "demo", "explode")
	assert.Error(t, err)
}

func TestErrors(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.MigrateDatabase(ctx, "demo", MigrateRequest{})
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "At least one of php, database or phpmyadmin is required", ae.Message)

	id, err := c.MigrateDatabase(ctx, "demo", MigrateRequest{PHP: "8.2"})
	require.NoError(t, err)
	assert.Equal(t, "migrate-demo-1", id)

	_, err = c.Logs(ctx, "missing", 0)
	assert.True(t, IsNotFound(err))
}

func TestListingAndReachability(t *testing.T) {
	c, d := newTestClient(t)
	ctx := context.Background()

	sites, err := c.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "demo", sites[0].App)

	assert.True(t, c.IsReachable(ctx))
	assert.Contains(t, d.calls, "GET /api/operations")

	unreachable := New(Config{BaseURL: "http://127.0.0.1:1/api", Timeout: time.Second})
	assert.False(t, unreachable.IsReachable(ctx))
}
