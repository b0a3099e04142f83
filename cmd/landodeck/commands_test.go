package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/landodeck"
	"github.com/loykin/landodeck/internal/config"
)

const fakeLando = `#!/bin/sh
case "$1" in
  list) echo '[]' ;;
  start) echo "Starting..." ;;
  rebuild) exit 1 ;;
  stop) sleep 10 ;;
  version) echo v3.21.0 ;;
  *) echo "$@" ;;
esac
`

type fixture struct {
	apiURL   string
	lando    string
	sitesDir string
}

func setup(t *testing.T) fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts stand in for lando")
	}
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	sitesDir := filepath.Join(root, "sites")
	demo := filepath.Join(sitesDir, "demo")
	require.NoError(t, os.MkdirAll(demo, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(demo, ".lando.yml"), []byte("name: demo\nrecipe: lamp\n"), 0o644))
	bin := filepath.Join(root, "lando")
	require.NoError(t, os.WriteFile(bin, []byte(fakeLando), 0o755))

	cfg := config.Defaults()
	cfg.LandoPath = bin
	cfg.SitesDirectory = sitesDir
	d, err := landodeck.New(config.NewStore(filepath.Join(root, config.FileName), cfg), landodeck.Options{DisableDocker: true})
	require.NoError(t, err)

	srv := httptest.NewServer(d.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Manager().Shutdown(ctx)
		srv.Close()
	})
	return fixture{apiURL: srv.URL + "/api", lando: bin, sitesDir: sitesDir}
}

func execute(args ...string) (string, error) {
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

var startedRe = regexp.MustCompile(`Operation (\S+) started`)

func startedID(t *testing.T, out string) string {
	t.Helper()
	m := startedRe.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	return m[1]
}

func TestHelpMentionsCommands(t *testing.T) {
	out, err := execute("--help")
	require.NoError(t, err)
	for _, name := range []string{"serve", "sites", "start", "rebuild", "migrate", "logs", "cancel", "config"} {
		assert.Contains(t, out, name)
	}
}

func TestStartWaitStreamsLog(t *testing.T) {
	f := setup(t)
	out, err := execute("--api-url", f.apiURL, "start", "demo", "--wait", "--interval", "10ms")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Starting...")
	assert.Contains(t, out, "succeeded")
}

func TestRebuildFailureExitsNonZero(t *testing.T) {
	f := setup(t)
	out, err := execute("--api-url", f.apiURL, "rebuild", "demo", "--wait", "--interval", "10ms")
	require.ErrorIs(t, err, errOperationFailed)
	assert.Contains(t, out, "failed: Process exited with code 1")
}

func TestLaunchThenFollowLogs(t *testing.T) {
	f := setup(t)
	out, err := execute("--api-url", f.apiURL, "start", "demo")
	require.NoError(t, err)
	id := startedID(t, out)

	out, err = execute("--api-url", f.apiURL, "logs", id, "--follow", "--interval", "10ms")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Starting...")

	out, err = execute("--api-url", f.apiURL, "logs", id, "--since", "1")
	require.NoError(t, err, out)
	assert.NotContains(t, out, "Starting...")
	assert.Contains(t, out, "succeeded")

	out, err = execute("--api-url", f.apiURL, "operations")
	require.NoError(t, err)
	assert.Contains(t, out, id)
}

func TestCancelRunningOperation(t *testing.T) {
	f := setup(t)
	out, err := execute("--api-url", f.apiURL, "stop", "demo")
	require.NoError(t, err)
	id := startedID(t, out)

	out, err = execute("--api-url", f.apiURL, "cancel", id)
	require.NoError(t, err, out)
	assert.Contains(t, out, "cancelled")

	out, err = execute("--api-url", f.apiURL, "logs", id, "--follow", "--interval", "10ms")
	require.ErrorIs(t, err, errOperationFailed)
	assert.Contains(t, out, "Operation "+id+" cancelled")
}

func TestSitesAndErrors(t *testing.T) {
	f := setup(t)
	out, err := execute("--api-url", f.apiURL, "sites")
	require.NoError(t, err)
	assert.Contains(t, out, `"app": "demo"`)

	_, err = execute("--api-url", f.apiURL, "start", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Site missing not found")

	_, err = execute("--api-url", f.apiURL, "logs", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = execute("--api-url", f.apiURL, "migrate", "demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "At least one of")

	_, err = execute("--api-url", f.apiURL, "migrate", "demo", "--phpmyadmin", "--no-phpmyadmin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")

	_, err = execute("--api-url", f.apiURL, "create", "Bad Name", "--recipe", "lamp")
	require.Error(t, err)

	_, err = execute("--api-url", f.apiURL, "logs", "x", "--since", "-1")
	require.Error(t, err)
}

func TestDaemonNotReachable(t *testing.T) {
	_, err := execute("--api-url", "http://127.0.0.1:1/api", "--api-timeout", "500ms", "sites")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon not reachable")
}

func TestConfigVerify(t *testing.T) {
	f := setup(t)
	out, err := execute("config", "verify", "--lando-path", f.lando, "--sites-directory", f.sitesDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"landoValid": true`)
	assert.Contains(t, out, `"sitesDirectoryValid": true`)

	out, err = execute("config", "verify", "--lando-path", f.lando, "--sites-directory", filepath.Join(f.sitesDir, "nope"))
	require.Error(t, err)
	assert.Contains(t, out, `"sitesDirectoryValid": false`)
}

func TestConfigDetectPrintsJSON(t *testing.T) {
	out, err := execute("config", "detect")
	require.NoError(t, err)
	assert.Contains(t, out, `"landoPath"`)
	assert.Contains(t, out, `"sitesDirectory"`)
}

func TestAPIURLFromConfig(t *testing.T) {
	cases := []struct {
		listen, base, want string
	}{
		{"127.0.0.1:3000", "/api", "http://127.0.0.1:3000/api"},
		{":3001", "/api/", "http://127.0.0.1:3001/api"},
		{"0.0.0.0:8080", "/deck", "http://127.0.0.1:8080/deck"},
		{"[::1]:3000", "/api", "http://[::1]:3000/api"},
		{"garbage", "/api", "http://127.0.0.1:3000/api"},
	}
	for _, tc := range cases {
		cfg := config.Defaults()
		cfg.Server.Listen = tc.listen
		cfg.Server.BasePath = tc.base
		assert.Equal(t, tc.want, apiURLFromConfig(cfg), tc.listen)
	}
}

func TestAPIURLComesFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)
	cfg := config.Defaults()
	cfg.Server.Listen = "127.0.0.1:4100"
	require.NoError(t, config.Save(path, cfg))

	c := command{global: &GlobalFlags{ConfigPath: path}}
	assert.Equal(t, "http://127.0.0.1:4100/api", c.apiURL())

	c.global.APIUrl = "http://elsewhere/api"
	assert.Equal(t, "http://elsewhere/api", c.apiURL())
}
