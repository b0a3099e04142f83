package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/loykin/landodeck/internal/lando"
	"github.com/loykin/landodeck/internal/landofile"
	"github.com/loykin/landodeck/internal/operation"
)

// Migration step names, as they appear in failure lines and errors.
const (
	StepExport      = "export"
	StepReconfigure = "reconfigure"
	StepDestroy     = "destroy"
	StepRecreate    = "recreate"
	StepImport      = "import"
	StepCleanup     = "cleanup"

	migrationSteps = 6
)

// MigrateDatabase moves a site to new PHP/database settings: export the
// database, rewrite the Landofile, destroy, start fresh, import, clean up.
// The first failing step aborts the rest and leaves recovery instructions in
// the log. Nothing is rolled back.
func (s *Service) MigrateDatabase(site lando.Binding, req MigrateRequest) operation.Task {
	return func(ctx context.Context, op *operation.Op) error {
		m := &migration{
			svc:    s,
			op:     op,
			site:   site,
			req:    req,
			backup: fmt.Sprintf("landodeck-backup-%d.sql", s.now().UnixMilli()),
		}
		return m.run(ctx)
	}
}

type migration struct {
	svc      *Service
	op       *operation.Op
	site     lando.Binding
	req      MigrateRequest
	backup   string // requested export name
	artifact string // file the export actually produced
}

func (m *migration) step(n int, format string, args ...any) {
	m.op.Logf("[%d/%d] "+format, append([]any{n, migrationSteps}, args...)...)
}

func (m *migration) fail(step string, err error) error {
	file := m.artifact
	if file == "" {
		file = m.backup
	}
	m.op.Logf("✗ Migration failed during %s: %v", step, err)
	m.op.Append(
		"The site may be in an inconsistent state.",
		"Backup file (if created): "+file,
		"Recover manually with: lando rebuild -y, then lando db-import "+file,
	)
	return fmt.Errorf("%s failed: %w", step, err)
}

func (m *migration) run(ctx context.Context) error {
	s, dir := m.svc, m.site.Dir

	m.step(1, "Exporting database to %s...", m.backup)
	if err := s.shell.Stream(ctx, s.cli.DBExport(m.backup), dir, m.op.Line); err != nil {
		return m.fail(StepExport, err)
	}
	artifact, err := findArtifact(dir, m.backup)
	if err != nil {
		return m.fail(StepExport, err)
	}
	m.artifact = artifact
	m.op.Logf("Backup saved as %s", artifact)

	m.step(2, "Updating %s...", landofile.FileName)
	if err := s.editor.Edit(dir, m.reconfigure); err != nil {
		return m.fail(StepReconfigure, err)
	}

	m.step(3, "Destroying containers for %s...", m.site.Name)
	if err := s.shell.Stream(ctx, s.cli.Destroy(), dir, m.op.Line); err != nil {
		return m.fail(StepDestroy, err)
	}

	m.step(4, "Starting %s with the new configuration...", m.site.Name)
	if err := s.shell.Stream(ctx, s.cli.Start(), dir, m.op.Line); err != nil {
		return m.fail(StepRecreate, err)
	}

	m.step(5, "Importing database from %s...", artifact)
	if err := s.shell.Stream(ctx, s.cli.DBImport(artifact), dir, m.op.Line); err != nil {
		return m.fail(StepImport, err)
	}

	m.step(6, "Removing %s...", artifact)
	if err := os.Remove(filepath.Join(dir, artifact)); err != nil {
		m.op.Logf("Warning: could not remove backup %s: %v", artifact, err)
	}

	m.op.Logf("✓ Migration of %s complete", m.site.Name)
	return nil
}

func (m *migration) reconfigure(f *landofile.File) error {
	if v := m.req.PHP; v != "" {
		f.SetPHP(v)
		m.op.Logf("  php: %s", v)
	}
	if v := m.req.Database; v != "" {
		f.SetDatabase(v)
		m.op.Logf("  database: %s", v)
	}
	if p := m.req.PhpMyAdmin; p != nil {
		if *p {
			f.AddPhpMyAdmin(landofile.DefaultDatabase)
			m.op.Logf("  phpmyadmin: enabled")
		} else {
			f.RemoveService(landofile.PhpMyAdmin)
			m.op.Logf("  phpmyadmin: disabled")
		}
	}
	return nil
}

// findArtifact returns the newest file in dir whose name starts with requested.
// The export tool may append its own suffix, such as ".gz".
func findArtifact(dir, requested string) (string, error) {
	pattern := requested + "*"
	if !doublestar.ValidatePattern(pattern) {
		return "", fmt.Errorf("invalid backup name %q", requested)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var (
		newest string
		best   int64
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := doublestar.Match(pattern, e.Name()); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mt := info.ModTime().UnixNano(); newest == "" || mt > best {
			newest, best = e.Name(), mt
		}
	}
	if newest == "" {
		return "", errors.New("backup file " + requested + "* was not created in " + dir)
	}
	return newest, nil
}
