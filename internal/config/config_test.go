package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/landodeck/internal/process"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDefaults(t *testing.T) {
	c := Defaults()
	assert.Equal(t, "auto", c.LandoPath)
	assert.Equal(t, "admin", c.WordPress.AdminUser)
	assert.Equal(t, "admin@example.com", c.WordPress.AdminEmail)
	assert.Equal(t, "127.0.0.1:3000", c.Server.Listen)
	assert.Equal(t, "/api", c.Server.BasePath)
	assert.Equal(t, 30*time.Minute, c.Operations.Retention)
	assert.Equal(t, time.Minute, c.Operations.CleanupInterval)
	assert.Equal(t, 300*time.Second, c.Operations.CommandTimeout)
	assert.Equal(t, 500, c.Operations.MaxRecords)
	assert.Equal(t, 10<<20, c.Operations.MaxOutputBytes())
	assert.Equal(t, "info", c.Log.Level)
	assert.NoError(t, c.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.NotEqual(t, "auto", c.LandoPath, "lando path is detected when no file exists")
	assert.NotEmpty(t, c.LandoPath)
	assert.False(t, c.SetupComplete)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, `{
  "landoPath": "/opt/lando/bin/lando",
  "sitesDirectory": "/srv/sites",
  "wordpress": {"adminUser": "james"},
  "setupComplete": true,
  "server": {"basePath": "v1/"},
  "operations": {"retention": "2h", "maxRecords": 20}
}`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/lando/bin/lando", c.LandoPath)
	assert.Equal(t, "/srv/sites", c.SitesDirectory)
	assert.Equal(t, "james", c.WordPress.AdminUser)
	assert.Equal(t, "admin", c.WordPress.AdminPassword)
	assert.True(t, c.SetupComplete)
	assert.Equal(t, "/v1", c.Server.BasePath)
	assert.Equal(t, 2*time.Hour, c.Operations.Retention)
	assert.Equal(t, 20, c.Operations.MaxRecords)
	assert.Equal(t, time.Minute, c.Operations.CleanupInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, `{"server": {"listen": "127.0.0.1:3000"}}`)
	t.Setenv("LANDODECK_SERVER_LISTEN", "0.0.0.0:9000")
	t.Setenv("LANDODECK_SITESDIRECTORY", "/env/sites")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", c.Server.Listen)
	assert.Equal(t, "/env/sites", c.SitesDirectory)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"landoPath": `)
	_, err := Load(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.json")
	writeFile(t, invalid, `{"operations": {"maxRecords": 0}}`)
	_, err = Load(invalid)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, `{"sitesDirectory": "~/lando"}`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "lando"), c.SitesDirectory)
}

func TestStore_UpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s := NewStore(path, Defaults())

	var seen []Config
	s.OnChange(func(c Config) { seen = append(seen, c) })

	next, err := s.Update(map[string]any{
		"sitesDirectory": "/srv/sites",
		"setupComplete":  true,
		"wordpress":      map[string]any{"adminPassword": "s3cret"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/srv/sites", next.SitesDirectory)
	assert.Equal(t, "s3cret", next.WordPress.AdminPassword)
	assert.Equal(t, "admin", next.WordPress.AdminUser, "nested keys merge")
	assert.Equal(t, next, s.Get())
	require.Len(t, seen, 1)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "/srv/sites", onDisk["sitesDirectory"])
	assert.Equal(t, "30m0s", onDisk["operations"].(map[string]any)["retention"])

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, next, loaded)
}

func TestStore_UpdateRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s := NewStore(path, Defaults())

	_, err := s.Update(map[string]any{"operations": map[string]any{"maxRecords": -1}})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, 500, s.Get().Operations.MaxRecords)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing is written")
}

func TestStore_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Defaults()))
	s, err := Open(path)
	require.NoError(t, err)

	changed := make(chan Config, 4)
	s.OnChange(func(c Config) {
		select {
		case changed <- c:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// The watcher is registered asynchronously; keep rewriting until it sees one.
	next := Defaults()
	next.SitesDirectory = "/watched"
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
loop:
	for {
		select {
		case c := <-changed:
			if c.SitesDirectory == "/watched" {
				break loop
			}
		case <-tick.C:
			require.NoError(t, Save(path, next))
		case <-deadline:
			t.Fatal("config change was not picked up")
		}
	}
	assert.Equal(t, "/watched", s.SitesDirectory())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestVerifySitesDirectory(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, VerifySitesDirectory(dir))
	assert.False(t, VerifySitesDirectory(""))
	assert.False(t, VerifySitesDirectory(filepath.Join(dir, "missing")))

	file := filepath.Join(dir, "f")
	writeFile(t, file, "x")
	assert.False(t, VerifySitesDirectory(file))
}

func TestDetectSitesDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, "lando"), DetectSitesDirectory())

	site := filepath.Join(home, "Projects", "blog")
	require.NoError(t, os.MkdirAll(site, 0o755))
	writeFile(t, filepath.Join(site, ".lando.yml"), "name: blog\n")
	require.NoError(t, os.MkdirAll(filepath.Join(home, "sites", "empty"), 0o755))
	assert.Equal(t, filepath.Join(home, "Projects"), DetectSitesDirectory())
}

func TestVerifyLando(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts stand in for lando")
	}
	dir := t.TempDir()
	good := filepath.Join(dir, "lando-ok")
	bad := filepath.Join(dir, "lando-bad")
	require.NoError(t, os.WriteFile(good, []byte("#!/bin/sh\n[ \"$1\" = version ] && echo v3.21.0\n"), 0o755))
	require.NoError(t, os.WriteFile(bad, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	r := process.NewRunner(process.RunnerConfig{})
	ctx := context.Background()
	assert.True(t, VerifyLando(ctx, r, good))
	assert.False(t, VerifyLando(ctx, r, bad))
	assert.False(t, VerifyLando(ctx, r, ""))

	d := Detect(ctx, r)
	assert.NotEmpty(t, d.LandoPath)
	assert.NotEmpty(t, d.SitesDirectory)
}
