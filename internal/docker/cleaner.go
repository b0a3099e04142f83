package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docker/docker/client"
)

// API is the part of the Docker client the cleaner uses.
// This allows us to mock the Docker client for testing.
type API interface {
	VolumeRemove(ctx context.Context, volumeID string, force bool) error
	NetworkRemove(ctx context.Context, networkID string) error
}

// NewClient connects to the Docker daemon configured by the environment.
func NewClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("could not create Docker client: %w", err)
	}
	return cli, nil
}

// Cleaner removes the volumes and network Lando leaves behind for a compose project.
type Cleaner struct {
	api API
	log *slog.Logger
}

func NewCleaner(api API, log *slog.Logger) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	return &Cleaner{api: api, log: log.With("component", "docker")}
}

// SiteVolumes are the named volumes of a Lando compose project.
func SiteVolumes(project string) []string {
	return []string{
		project + "_data_database",
		project + "_home_appserver",
		project + "_home_database",
	}
}

// SiteNetwork is the default network of a Lando compose project.
func SiteNetwork(project string) string {
	return project + "_default"
}

// RemoveSiteResources removes every volume and the default network of project.
// Resources that do not exist are skipped; other failures are joined.
func (c *Cleaner) RemoveSiteResources(ctx context.Context, project string) error {
	var errs []error
	for _, v := range SiteVolumes(project) {
		if err := c.api.VolumeRemove(ctx, v, true); err != nil && !client.IsErrNotFound(err) {
			errs = append(errs, fmt.Errorf("remove volume %s: %w", v, err))
			continue
		}
		c.log.Debug("Volume removed", "volume", v)
	}
	n := SiteNetwork(project)
	if err := c.api.NetworkRemove(ctx, n); err != nil && !client.IsErrNotFound(err) {
		errs = append(errs, fmt.Errorf("remove network %s: %w", n, err))
	} else {
		c.log.Debug("Network removed", "network", n)
	}
	return errors.Join(errs...)
}
