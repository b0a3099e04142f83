package lando

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/loykin/landodeck/internal/landofile"
)

var ErrSiteNotFound = errors.New("site not found")

// Site is one Lando app as shown in listings.
type Site struct {
	App     string   `json:"app"`
	Running bool     `json:"running"`
	Dir     string   `json:"dir"`
	URLs    []string `json:"urls"`
	Recipe  string   `json:"recipe"`
}

// Binding ties a site name to its working directory.
type Binding struct {
	Name string `json:"name"`
	Dir  string `json:"dir"`
}

// listEntry is one service row of "lando list --format json".
type listEntry struct {
	App     string   `json:"app"`
	Running bool     `json:"running"`
	Src     []string `json:"src"`
	URLs    []string `json:"urls"`
}

const unknownRecipe = "Unknown"

// Resolver finds sites from the Lando CLI and the sites directory.
type Resolver struct {
	cli      CLI
	runner   CommandRunner
	sitesDir func() string
}

func NewResolver(cli CLI, runner CommandRunner, sitesDir func() string) *Resolver {
	return &Resolver{cli: cli, runner: runner, sitesDir: sitesDir}
}

// List merges running apps reported by Lando with every directory under the
// sites directory that holds a Landofile. Names and recipes come from the
// Landofile when one exists.
func (r *Resolver) List(ctx context.Context) ([]Site, error) {
	byDir := map[string]*Site{}

	res := r.runner.Run(ctx, r.cli.Command("list", "--format", "json"), "")
	if res.Success {
		var entries []listEntry
		if err := json.Unmarshal([]byte(res.Stdout), &entries); err != nil {
			slog.Debug("Ignoring unreadable lando list output", "error", err)
		}
		for _, e := range entries {
			if e.App == "" || e.App == "_global_" || len(e.Src) == 0 || e.Src[0] == "" {
				continue
			}
			dir := strings.TrimSuffix(e.Src[0], "/"+landofile.FileName)
			if _, ok := byDir[dir]; ok {
				continue
			}
			urls := e.URLs
			if len(urls) == 0 {
				urls = []string{SiteURL(e.App)}
			}
			byDir[dir] = &Site{App: e.App, Running: e.Running, Dir: dir, URLs: urls, Recipe: unknownRecipe}
		}
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if base := r.baseDir(); base != "" {
		dirs, err := os.ReadDir(base)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read sites directory: %w", err)
		}
		for _, d := range dirs {
			if !d.IsDir() {
				continue
			}
			full := filepath.Join(base, d.Name())
			if _, err := os.Stat(filepath.Join(full, landofile.FileName)); err != nil {
				continue
			}
			name, recipe := d.Name(), unknownRecipe
			if f, err := landofile.Read(full); err == nil {
				if n := f.Name(); n != "" {
					name = n
				}
				if rc := f.Recipe(); rc != "" {
					recipe = rc
				}
			}
			if s, ok := byDir[full]; ok {
				s.App = name
				s.Recipe = recipe
				s.URLs = []string{SiteURL(name)}
				continue
			}
			byDir[full] = &Site{App: name, Dir: full, URLs: []string{SiteURL(name)}, Recipe: recipe}
		}
	}

	sites := make([]Site, 0, len(byDir))
	for _, s := range byDir {
		sites = append(sites, *s)
	}
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].App != sites[j].App {
			return sites[i].App < sites[j].App
		}
		return sites[i].Dir < sites[j].Dir
	})
	return sites, nil
}

// Resolve finds the site called name and checks its directory still exists.
func (r *Resolver) Resolve(ctx context.Context, name string) (Binding, error) {
	sites, err := r.List(ctx)
	if err != nil {
		return Binding{}, err
	}
	for _, s := range sites {
		if s.App != name {
			continue
		}
		if st, err := os.Stat(s.Dir); err != nil || !st.IsDir() {
			return Binding{}, fmt.Errorf("%w: directory %s is missing", ErrSiteNotFound, s.Dir)
		}
		return Binding{Name: s.App, Dir: s.Dir}, nil
	}
	return Binding{}, fmt.Errorf("%w: %s", ErrSiteNotFound, name)
}

// SiteDir is where a new site called name is created.
func (r *Resolver) SiteDir(name string) (string, error) {
	base := r.baseDir()
	if base == "" {
		return "", errors.New("sites directory is not configured")
	}
	return filepath.Join(base, name), nil
}

// Info returns the parsed output of "lando info --format json" run in dir,
// or an empty object when it fails.
func (r *Resolver) Info(ctx context.Context, dir string) json.RawMessage {
	res := r.runner.Run(ctx, r.cli.Command("info", "--format", "json"), dir)
	if res.Success && json.Valid([]byte(strings.TrimSpace(res.Stdout))) {
		return json.RawMessage(strings.TrimSpace(res.Stdout))
	}
	return json.RawMessage("{}")
}

func (r *Resolver) baseDir() string {
	if r.sitesDir == nil {
		return ""
	}
	return strings.TrimSpace(r.sitesDir())
}
