package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/loykin/landodeck/internal/config"
	"github.com/loykin/landodeck/internal/process"
	"github.com/loykin/landodeck/pkg/client"
)

// errOperationFailed makes the process exit non-zero once the failure has
// already been printed.
var errOperationFailed = errors.New("operation failed")

type command struct {
	global *GlobalFlags
	out    io.Writer
}

func (c *command) apiURL() string {
	if c.global.APIUrl != "" {
		return c.global.APIUrl
	}
	if store, err := config.Open(c.configPath()); err == nil {
		return apiURLFromConfig(store.Get())
	}
	return client.DefaultBaseURL
}

func (c *command) configPath() string {
	if c.global.ConfigPath != "" {
		return c.global.ConfigPath
	}
	return config.DefaultPath()
}

// connect returns a client for a daemon that answers.
func (c *command) connect(ctx context.Context) (*client.Client, error) {
	url := c.apiURL()
	api := client.New(client.Config{BaseURL: url, Timeout: c.global.APITimeout})
	if !api.IsReachable(ctx) {
		return nil, fmt.Errorf("daemon not reachable at %s - please start daemon first with 'landodeck serve'", url)
	}
	return api, nil
}

func (c *command) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *command) Sites(ctx context.Context) error {
	api, err := c.connect(ctx)
	if err != nil {
		return err
	}
	sites, err := api.ListSites(ctx)
	if err != nil {
		return err
	}
	printJSON(c.out, sites)
	return nil
}

func (c *command) Info(ctx context.Context, site string) error {
	api, err := c.connect(ctx)
	if err != nil {
		return err
	}
	info, err := api.SiteInfo(ctx, site)
	if err != nil {
		return err
	}
	printJSON(c.out, info)
	return nil
}

func (c *command) Create(ctx context.Context, name string, f CreateFlags) error {
	return c.launch(ctx, f.WaitFlags, func(api *client.Client) (string, error) {
		return api.CreateSite(ctx, client.CreateSiteRequest{
			Name:     name,
			Recipe:   f.Recipe,
			PHP:      f.PHP,
			Database: f.Database,
			Webroot:  f.Webroot,
		})
	})
}

func (c *command) Lifecycle(ctx context.Context, site, action string, f WaitFlags) error {
	return c.launch(ctx, f, func(api *client.Client) (string, error) {
		return api.Lifecycle(ctx, site, action)
	})
}

func (c *command) Destroy(ctx context.Context, site string, f WaitFlags) error {
	return c.launch(ctx, f, func(api *client.Client) (string, error) {
		return api.Destroy(ctx, site)
	})
}

func (c *command) Migrate(ctx context.Context, site string, f MigrateFlags) error {
	if f.PhpMyAdmin && f.NoPhpMyAdmin {
		return errors.New("--phpmyadmin and --no-phpmyadmin are mutually exclusive")
	}
	req := client.MigrateRequest{PHP: f.PHP, Database: f.Database}
	switch {
	case f.PhpMyAdmin:
		on := true
		req.PhpMyAdmin = &on
	case f.NoPhpMyAdmin:
		off := false
		req.PhpMyAdmin = &off
	}
	return c.launch(ctx, f.WaitFlags, func(api *client.Client) (string, error) {
		return api.MigrateDatabase(ctx, site, req)
	})
}

// launch starts an operation and, with --wait, streams its log until it ends.
func (c *command) launch(ctx context.Context, f WaitFlags, start func(*client.Client) (string, error)) error {
	api, err := c.connect(ctx)
	if err != nil {
		return err
	}
	id, err := start(api)
	if err != nil {
		return err
	}
	if !f.Wait {
		c.printf("Operation %s started", id)
		return nil
	}
	return c.follow(ctx, api, id, 0, f.Interval)
}

func (c *command) follow(ctx context.Context, api *client.Client, id string, since int, interval time.Duration) error {
	seen := 0
	final, err := api.Follow(ctx, id, interval, func(line string) {
		if seen >= since {
			c.printf("%s", line)
		}
		seen++
	})
	if err != nil {
		return err
	}
	c.printf("%s", operationStatus(id, final))
	if !final.Succeeded() {
		return errOperationFailed
	}
	return nil
}

func (c *command) Logs(ctx context.Context, id string, f LogsFlags) error {
	if f.Since < 0 {
		return errors.New("--since must be zero or positive")
	}
	api, err := c.connect(ctx)
	if err != nil {
		return err
	}
	if f.Follow {
		return c.follow(ctx, api, id, f.Since, f.Interval)
	}
	l, err := api.Logs(ctx, id, f.Since)
	if err != nil {
		return err
	}
	for _, line := range l.Logs {
		c.printf("%s", line)
	}
	if !l.Completed {
		c.printf("Operation %s running (%d lines)", id, l.Total)
		return nil
	}
	c.printf("%s", operationStatus(id, l))
	if !l.Succeeded() {
		return errOperationFailed
	}
	return nil
}

func (c *command) Cancel(ctx context.Context, id string) error {
	api, err := c.connect(ctx)
	if err != nil {
		return err
	}
	if err := api.Cancel(ctx, id); err != nil {
		return err
	}
	c.printf("Operation %s cancelled", id)
	return nil
}

func (c *command) Operations(ctx context.Context) error {
	api, err := c.connect(ctx)
	if err != nil {
		return err
	}
	ops, err := api.Operations(ctx)
	if err != nil {
		return err
	}
	printJSON(c.out, ops)
	return nil
}

// ConfigDetect probes the local machine; no daemon is needed.
func (c *command) ConfigDetect(ctx context.Context) error {
	printJSON(c.out, config.Detect(ctx, process.NewRunner(process.RunnerConfig{})))
	return nil
}

// ConfigVerify checks the given paths, falling back to the configured ones.
func (c *command) ConfigVerify(ctx context.Context, f VerifyFlags) error {
	if f.LandoPath == "" || f.SitesDirectory == "" {
		store, err := config.Open(c.configPath())
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		cfg := store.Get()
		if f.LandoPath == "" {
			f.LandoPath = cfg.LandoPath
		}
		if f.SitesDirectory == "" {
			f.SitesDirectory = cfg.SitesDirectory
		}
	}
	res := client.Verified{
		LandoValid:          config.VerifyLando(ctx, process.NewRunner(process.RunnerConfig{}), f.LandoPath),
		SitesDirectoryValid: config.VerifySitesDirectory(f.SitesDirectory),
	}
	printJSON(c.out, res)
	if !res.LandoValid || !res.SitesDirectoryValid {
		return errors.New("verification failed")
	}
	return nil
}

// bind returns a copy of c that prints to out.
func (c command) bind(out io.Writer) *command {
	c.out = out
	return &c
}
