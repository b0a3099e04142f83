package config

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/loykin/landodeck/internal/lando"
)

// VerifyTimeout bounds the `lando version` probe.
const VerifyTimeout = 5 * time.Second

// Detected is the result of auto-detection, with each value verified.
type Detected struct {
	LandoPath           string `json:"landoPath"`
	SitesDirectory      string `json:"sitesDirectory"`
	LandoValid          bool   `json:"landoValid"`
	SitesDirectoryValid bool   `json:"sitesDirectoryValid"`
}

func landoCandidates() []string {
	c := []string{"/usr/local/bin/lando", "/usr/bin/lando"}
	if home, err := os.UserHomeDir(); err == nil {
		c = append(c, filepath.Join(home, ".lando", "bin", "lando"))
	}
	return append(c, `C:\Program Files\Lando\bin\lando.exe`, `C:\ProgramData\Lando\bin\lando.exe`)
}

// DetectLandoPath looks for the Lando executable in the usual install
// locations, then on PATH, and falls back to plain "lando".
func DetectLandoPath() string {
	for _, p := range landoCandidates() {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	if p, err := exec.LookPath("lando"); err == nil {
		return p
	}
	return "lando"
}

// DetectSitesDirectory returns the first common project directory that
// already holds a Lando site, or ~/lando.
func DetectSitesDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "lando"
	}
	for _, name := range []string{"lando", "sites", "Projects", "projects", "Development", "dev"} {
		dir := filepath.Join(home, name)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if _, err := os.Stat(filepath.Join(dir, e.Name(), ".lando.yml")); err == nil {
				return dir
			}
		}
	}
	return filepath.Join(home, "lando")
}

// VerifyLando reports whether `<landoPath> version` succeeds.
func VerifyLando(ctx context.Context, r lando.CommandRunner, landoPath string) bool {
	if landoPath == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, VerifyTimeout)
	defer cancel()
	cli := lando.CLI{Path: func() string { return landoPath }}
	return r.Run(ctx, cli.Command("version"), "").Success
}

// VerifySitesDirectory reports whether dir exists and is a directory.
func VerifySitesDirectory(dir string) bool {
	if dir == "" {
		return false
	}
	fi, err := os.Stat(expandHome(dir))
	return err == nil && fi.IsDir()
}

// Detect auto-detects both settings and verifies them.
func Detect(ctx context.Context, r lando.CommandRunner) Detected {
	d := Detected{LandoPath: DetectLandoPath(), SitesDirectory: DetectSitesDirectory()}
	d.LandoValid = VerifyLando(ctx, r, d.LandoPath)
	d.SitesDirectoryValid = VerifySitesDirectory(d.SitesDirectory)
	return d
}
