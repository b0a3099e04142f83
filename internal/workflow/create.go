package workflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/landodeck/internal/lando"
	"github.com/loykin/landodeck/internal/landofile"
	"github.com/loykin/landodeck/internal/operation"
)

// ErrSiteExists is returned by a create task whose directory is already taken.
var ErrSiteExists = errors.New("Site already exists")

// Create scaffolds a site in dir, starts it and, for WordPress, installs core.
// The directory must not exist yet; the check runs under the site lock.
func (s *Service) Create(req CreateRequest, dir string) operation.Task {
	return func(ctx context.Context, op *operation.Op) error {
		op.Logf("Creating directory %s...", dir)
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
		if err := os.Mkdir(dir, 0o755); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return ErrSiteExists
			}
			return fmt.Errorf("create directory: %w", err)
		}

		if req.Recipe == RecipeWordPress {
			op.Logf("Downloading WordPress...")
			if err := s.shell.Stream(ctx, "curl -fsSL -o latest.tar.gz "+shellQuote(s.wpURL), dir, op.Line); err != nil {
				return fmt.Errorf("download WordPress: %w", err)
			}
			op.Logf("Unpacking WordPress...")
			if err := s.shell.Stream(ctx, "tar -xzf latest.tar.gz && mv wordpress/* . && rm -rf wordpress latest.tar.gz", dir, op.Line); err != nil {
				return fmt.Errorf("unpack WordPress: %w", err)
			}
		}

		op.Logf("Writing %s...", landofile.FileName)
		f := landofile.New(req.Name, req.Recipe, landofile.Config{
			Webroot:  req.Webroot,
			PHP:      req.PHP,
			Database: req.Database,
		})
		if err := s.editor.Write(dir, f); err != nil {
			return fmt.Errorf("write %s: %w", landofile.FileName, err)
		}

		op.Logf("Starting site %s...", req.Name)
		if err := s.shell.Stream(ctx, s.cli.Start(), dir, op.Line); err != nil {
			return fmt.Errorf("start: %w", err)
		}

		if req.Recipe == RecipeWordPress {
			op.Logf("Configuring WordPress...")
			if err := s.shell.Stream(ctx, s.cli.Command("wp", "config", "create",
				"--dbname=wordpress", "--dbuser=wordpress", "--dbpass=wordpress", "--dbhost=database", "--skip-check"),
				dir, op.Line); err != nil {
				return fmt.Errorf("wp config create: %w", err)
			}
			op.Logf("Installing WordPress...")
			if err := s.shell.Stream(ctx, s.wpInstall(req.Name), dir, op.Line); err != nil {
				return fmt.Errorf("wp core install: %w", err)
			}
		}

		op.Logf("Site %s created: %s", req.Name, lando.SiteURL(req.Name))
		return nil
	}
}

func (s *Service) wpInstall(name string) string {
	c := s.creds()
	return s.cli.Command("wp", "core", "install",
		"--url="+lando.SiteURL(name),
		"--title="+shellQuote(name+"'s Site"),
		"--admin_user="+shellQuote(c.AdminUser),
		"--admin_password="+shellQuote(c.AdminPassword),
		"--admin_email="+shellQuote(c.AdminEmail),
	)
}

// shellQuote wraps s in single quotes for /bin/sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
