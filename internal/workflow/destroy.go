package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/loykin/landodeck/internal/lando"
	"github.com/loykin/landodeck/internal/operation"
)

// Destroy tears the site down, removes its Docker leftovers and deletes its
// directory. Destroy and cleanup failures are reported and skipped so a broken
// site can still be removed; only cancellation or a failed delete stops it.
func (s *Service) Destroy(site lando.Binding) operation.Task {
	return func(ctx context.Context, op *operation.Op) error {
		op.Logf("Destroying site %s...", site.Name)
		if err := s.shell.Stream(ctx, s.cli.Destroy(), site.Dir, op.Line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			op.Logf("Warning: lando destroy failed: %v", err)
		}

		if s.cleaner != nil {
			project := lando.ComposeProject(site.Name)
			op.Logf("Removing Docker volumes and network for %s...", project)
			if err := s.cleaner.RemoveSiteResources(ctx, project); err != nil {
				op.Logf("Warning: %v", err)
			}
		}

		op.Logf("Deleting %s...", site.Dir)
		if err := os.RemoveAll(site.Dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete directory: %w", err)
		}
		op.Logf("Site %s destroyed", site.Name)
		return nil
	}
}
