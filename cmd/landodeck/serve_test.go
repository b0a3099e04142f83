package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loykin/landodeck/internal/config"
)

func TestServeStopsWhenContextEnds(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	cfg := config.Defaults()
	cfg.LandoPath = "lando"
	cfg.SitesDirectory = dir
	cfg.Server.Listen = "127.0.0.1:0"
	require.NoError(t, config.Save(path, cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, runServe(ctx, path, ServeFlags{LogLevel: "error", NoDocker: true}))
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"operations": {"maxRecords": -1}}`), 0o600))
	require.Error(t, runServe(context.Background(), path, ServeFlags{NoDocker: true}))
}
