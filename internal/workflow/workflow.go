package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/landodeck/internal/lando"
	"github.com/loykin/landodeck/internal/landofile"
	"github.com/loykin/landodeck/internal/process"
)

// DefaultWordPressURL is the core tarball fetched for new WordPress sites.
const DefaultWordPressURL = "https://wordpress.org/latest.tar.gz"

// Shell runs external commands.
type Shell interface {
	Stream(ctx context.Context, command, dir string, onLine func(string)) error
	Run(ctx context.Context, command, dir string) process.Result
}

// ConfigEditor reads and writes a site's Landofile.
type ConfigEditor interface {
	Edit(dir string, fn func(*landofile.File) error) error
	Write(dir string, f *landofile.File) error
}

// ResourceCleaner removes container runtime leftovers of a compose project.
type ResourceCleaner interface {
	RemoveSiteResources(ctx context.Context, project string) error
}

// Credentials are the WordPress admin account used on install.
type Credentials struct {
	AdminUser     string `json:"adminUser" mapstructure:"adminUser"`
	AdminPassword string `json:"adminPassword" mapstructure:"adminPassword"`
	AdminEmail    string `json:"adminEmail" mapstructure:"adminEmail"`
}

// Config wires the service's collaborators.
type Config struct {
	CLI          lando.CLI
	Shell        Shell
	Editor       ConfigEditor
	Cleaner      ResourceCleaner // optional
	Credentials  func() Credentials
	WordPressURL string
	Logger       *slog.Logger
	Now          func() time.Time
}

func (c *Config) defaults() error {
	if c.Shell == nil {
		return errors.New("shell is required")
	}
	if c.Editor == nil {
		c.Editor = landofile.Editor{}
	}
	if c.Credentials == nil {
		c.Credentials = func() Credentials {
			return Credentials{AdminUser: "admin", AdminPassword: "admin", AdminEmail: "admin@example.com"}
		}
	}
	if c.WordPressURL == "" {
		c.WordPressURL = DefaultWordPressURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// Service turns site actions into operation tasks.
type Service struct {
	cli     lando.CLI
	shell   Shell
	editor  ConfigEditor
	cleaner ResourceCleaner
	creds   func() Credentials
	wpURL   string
	log     *slog.Logger
	now     func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Service{
		cli:     cfg.CLI,
		shell:   cfg.Shell,
		editor:  cfg.Editor,
		cleaner: cfg.Cleaner,
		creds:   cfg.Credentials,
		wpURL:   cfg.WordPressURL,
		log:     cfg.Logger.With("component", "workflow"),
		now:     cfg.Now,
	}, nil
}
