package lando

import (
	"context"
	"strings"

	"github.com/loykin/landodeck/internal/process"
)

// CommandRunner runs a quick command to completion.
type CommandRunner interface {
	Run(ctx context.Context, command, dir string) process.Result
}

// CLI builds Lando command lines. Path reports the configured executable;
// empty, "auto" and "lando" mean the one on PATH.
type CLI struct {
	Path func() string
}

func (c CLI) bin() string {
	p := ""
	if c.Path != nil {
		p = strings.TrimSpace(c.Path())
	}
	if p == "" || p == "lando" || p == "auto" {
		return "lando"
	}
	return `"` + p + `"`
}

// Command joins args behind the Lando executable.
func (c CLI) Command(args ...string) string {
	return strings.Join(append([]string{c.bin()}, args...), " ")
}

func (c CLI) Start() string   { return c.Command("start") }
func (c CLI) Stop() string    { return c.Command("stop") }
func (c CLI) Restart() string { return c.Command("restart") }
func (c CLI) Rebuild() string { return c.Command("rebuild", "-y") }
func (c CLI) Destroy() string { return c.Command("destroy", "-y") }

func (c CLI) DBExport(file string) string { return c.Command("db-export", file) }
func (c CLI) DBImport(file string) string { return c.Command("db-import", file) }

// ComposeProject is the docker compose project Lando derives from an app
// name: lower-cased with "-", "_" and "." removed.
func ComposeProject(app string) string {
	return strings.NewReplacer("-", "", "_", "", ".", "").Replace(strings.ToLower(app))
}

// SiteURL is the default proxy URL of an app.
func SiteURL(app string) string {
	return "https://" + app + ".lndo.site"
}
