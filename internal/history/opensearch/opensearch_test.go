package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/landodeck/internal/history"
)

func TestOpenSearchSink_Send(t *testing.T) {
	var (
		method, path string
		body         []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	start := time.Now().Add(-time.Minute).UTC()
	evt := history.Event{
		Type:       history.EventFinished,
		OccurredAt: time.Now().UTC(),
		Record: history.Record{
			ID: "destroy-demo-1", Kind: "destroy", Site: "demo", Status: "succeeded",
			StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond),
		},
	}
	require.NoError(t, New(srv.URL+"/", "landodeck-ops").Send(context.Background(), evt))

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/landodeck-ops/_doc", path)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "finished", doc["type"])
	assert.EqualValues(t, 1500, doc["duration_ms"])
	rec := doc["record"].(map[string]any)
	assert.Equal(t, "destroy-demo-1", rec["id"])
}

func TestOpenSearchSink_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	err := New(srv.URL, "idx").Send(context.Background(), history.Event{Type: history.EventFinished})
	assert.EqualError(t, err, "opensearch sink status 400")
}
