package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Store holds the live configuration. It is safe for concurrent use.
type Store struct {
	path string

	writeMu sync.Mutex // serializes Update
	mu      sync.RWMutex
	cfg     Config
	subs    []func(Config)
	log     *slog.Logger
}

// NewStore wraps an already loaded config persisted at path.
func NewStore(path string, cfg Config) *Store {
	return &Store{path: path, cfg: cfg, log: slog.Default()}
}

// Open loads path and returns a store for it.
func Open(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewStore(path, cfg), nil
}

func (s *Store) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	s.mu.Lock()
	s.log = l.With("component", "config")
	s.mu.Unlock()
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// LandoPath is the configured Lando executable; it fits lando.CLI.Path.
func (s *Store) LandoPath() string { return s.Get().LandoPath }

func (s *Store) SitesDirectory() string { return s.Get().SitesDirectory }

// OnChange registers fn to run after every successful update or reload.
func (s *Store) OnChange(fn func(Config)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Update merges updates (keys as in the config file) over the current
// config, validates the result and persists it. On error nothing changes.
func (s *Store) Update(updates map[string]any) (Config, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, err := merge(s.Get(), updates)
	if err != nil {
		return Config{}, err
	}
	if err := Save(s.path, next); err != nil {
		return Config{}, err
	}
	s.set(next)
	return next, nil
}

// Reload re-reads the file. The current config is kept when the file is invalid.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	s.set(cfg)
	return nil
}

func (s *Store) set(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	subs := append([]func(Config){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(cfg)
	}
}

// Watch reloads the config whenever its file is written, until ctx is done.
// The parent directory is watched so atomic replaces are seen.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger().Warn("Config reload failed, keeping current config", "path", s.path, "error", err)
				continue
			}
			s.logger().Info("Config reloaded", "path", s.path)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger().Warn("Config watcher error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Store) logger() *slog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log
}

func merge(cur Config, updates map[string]any) (Config, error) {
	base, err := toMap(cur)
	if err != nil {
		return Config{}, err
	}
	v := newViper("")
	if err := v.MergeConfigMap(base); err != nil {
		return Config{}, err
	}
	if err := v.MergeConfigMap(updates); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var next Config
	if err := v.Unmarshal(&next); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	next.normalize()
	if err := next.Validate(); err != nil {
		return Config{}, err
	}
	return next, nil
}

func toMap(c Config) (map[string]any, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes cfg to path as indented JSON, replacing the file atomically.
func Save(path string, cfg Config) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".landodeckrc-*")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
