// Package landodeck embeds the Lando site control plane: the operation
// manager, the site workflows that feed it and the HTTP API in front of them.
package landodeck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/landodeck/internal/config"
	"github.com/loykin/landodeck/internal/docker"
	"github.com/loykin/landodeck/internal/history"
	"github.com/loykin/landodeck/internal/history/factory"
	"github.com/loykin/landodeck/internal/lando"
	"github.com/loykin/landodeck/internal/metrics"
	"github.com/loykin/landodeck/internal/operation"
	"github.com/loykin/landodeck/internal/process"
	"github.com/loykin/landodeck/internal/server"
	"github.com/loykin/landodeck/internal/workflow"
)

// Re-export core types for external consumers.

type Config = config.Config

type ConfigStore = config.Store

type Snapshot = operation.Snapshot

type Summary = operation.Summary

type Site = lando.Site

type Binding = lando.Binding

type Op = operation.Op

type Task = operation.Task

type HistorySink = history.Sink

// ShutdownTimeout bounds how long Serve waits for requests and running
// operations once it is asked to stop.
const ShutdownTimeout = 15 * time.Second

// LoadConfig opens the config file at path; an empty path means the default
// location in the home directory.
func LoadConfig(path string) (*ConfigStore, error) {
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Open(path)
}

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// Options tune how New assembles a Daemon.
type Options struct {
	Logger *slog.Logger
	// Docker removes leftover site volumes on destroy. When nil a client is
	// created from the environment unless DisableDocker is set.
	Docker        docker.API
	DisableDocker bool
	// HistorySinks are added to the sink built from the configured history DSN.
	HistorySinks []history.Sink
}

// Daemon is a fully wired control plane for one config store.
type Daemon struct {
	store    *config.Store
	log      *slog.Logger
	shell    process.Shell
	manager  *operation.Manager
	workflow *workflow.Service
	sites    *lando.Resolver
	router   *server.Router
	closers  []io.Closer
}

func New(store *config.Store, opts Options) (*Daemon, error) {
	if store == nil {
		return nil, errors.New("config store is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	store.SetLogger(log)
	cfg := store.Get()

	d := &Daemon{store: store, log: log}
	d.shell = process.NewShell(
		process.RunnerConfig{Timeout: cfg.Operations.CommandTimeout, MaxOutput: cfg.Operations.MaxOutputBytes()},
		process.StreamerConfig{},
	)
	cli := lando.CLI{Path: store.LandoPath}

	wcfg := workflow.Config{
		CLI:   cli,
		Shell: d.shell,
		Credentials: func() workflow.Credentials {
			wp := store.Get().WordPress
			return workflow.Credentials{AdminUser: wp.AdminUser, AdminPassword: wp.AdminPassword, AdminEmail: wp.AdminEmail}
		},
		Logger: log,
	}
	if api := d.dockerAPI(opts); api != nil {
		wcfg.Cleaner = docker.NewCleaner(api, log)
	}
	wf, err := workflow.NewService(wcfg)
	if err != nil {
		d.closeAll()
		return nil, err
	}
	d.workflow = wf

	reg := operation.NewRegistry(operation.RegistryConfig{
		Retention:       cfg.Operations.Retention,
		MaxRecords:      cfg.Operations.MaxRecords,
		CleanupInterval: cfg.Operations.CleanupInterval,
	})
	d.manager = operation.NewManager(reg, d.shell)
	d.manager.SetLogger(log)

	sinks := append([]history.Sink(nil), opts.HistorySinks...)
	if dsn := cfg.History.DSN; dsn != "" {
		sink, err := factory.NewSinkFromDSN(dsn)
		if err != nil {
			d.closeAll()
			return nil, fmt.Errorf("history sink: %w", err)
		}
		if c, ok := sink.(io.Closer); ok {
			d.closers = append(d.closers, c)
		}
		sinks = append(sinks, sink)
	}
	d.manager.SetHistorySinks(sinks...)

	d.sites = lando.NewResolver(cli, d.shell, store.SitesDirectory)
	d.router = server.NewRouter(server.Deps{
		Manager:  d.manager,
		Workflow: d.workflow,
		Sites:    d.sites,
		Config:   store,
		Runner:   d.shell,
		Logger:   log,
	}, cfg.Server.BasePath)
	return d, nil
}

func (d *Daemon) dockerAPI(opts Options) docker.API {
	if opts.Docker != nil {
		return opts.Docker
	}
	if opts.DisableDocker {
		return nil
	}
	cli, err := docker.NewClient()
	if err != nil {
		d.log.Warn("Docker unavailable, destroy will not remove site volumes", "error", err)
		return nil
	}
	d.closers = append(d.closers, cli)
	return cli
}

func (d *Daemon) Handler() http.Handler           { return d.router.Handler() }
func (d *Daemon) Manager() *operation.Manager     { return d.manager }
func (d *Daemon) Config() *config.Store           { return d.store }
func (d *Daemon) Sites() *lando.Resolver          { return d.sites }
func (d *Daemon) Workflows() *workflow.Service    { return d.workflow }
func (d *Daemon) Runner() lando.CommandRunner     { return d.shell }
func (d *Daemon) Logger() *slog.Logger            { return d.log }
func (d *Daemon) Operations() []operation.Summary { return d.manager.Registry().List() }

// Run listens on the configured address and serves until ctx ends or the
// process receives SIGINT or SIGTERM.
func (d *Daemon) Run(ctx context.Context) error {
	addr := d.store.Get().Server.Listen
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return d.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln next to the record eviction worker and
// the config watcher. When any of them stops, the rest are interrupted and
// running operations are cancelled. A signal or ctx ending is a clean exit.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	var g run.Group

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	{
		srv := server.NewServer(ln.Addr().String(), d.Handler())
		g.Add(func() error {
			d.log.Info("Starting landodeck server", "addr", ln.Addr().String(), "basePath", d.store.Get().Server.BasePath)
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		}, func(error) {
			sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				d.log.Warn("HTTP shutdown incomplete", "error", err)
			}
		})
	}

	{
		cctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			d.manager.Registry().RunCleanup(cctx)
			return nil
		}, func(error) {
			cancel()
		})
	}

	{
		wctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			if err := d.store.Watch(wctx); err != nil {
				d.log.Warn("Config watching disabled", "path", d.store.Path(), "error", err)
				<-wctx.Done()
			}
			return nil
		}, func(error) {
			cancel()
		})
	}

	err := g.Run()
	d.log.Info("Shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if serr := d.manager.Shutdown(sctx); serr != nil {
		d.log.Warn("Operations still running at shutdown", "error", serr)
	}
	d.closeAll()

	var sig run.SignalError
	switch {
	case err == nil, errors.As(err, &sig):
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return nil
	}
	return err
}

// Close releases the docker client and history sinks without serving.
func (d *Daemon) Close() error {
	d.closeAll()
	return nil
}

func (d *Daemon) closeAll() {
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			d.log.Warn("Close failed", "error", err)
		}
	}
	d.closers = nil
}
