package container

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
)

// Find lists containers matching name exactly. Docker's name filter is a
// regular expression over names with a leading slash, so the result is
// compared again after stripping it.
func (d *Docker) Find(ctx context.Context, name string, all bool) (*Container, error) {
	f := filters.NewArgs()
	f.Add("name", "^/"+name+"$")

	containers, err := d.docker.ContainerList(ctx, container.ListOptions{
		All:     all,
		Filters: f,
	})
	if err != nil {
		return nil, fmt.Errorf("list containers named %q: %w", name, err)
	}

	for _, c := range containers {
		for _, n := range c.Names {
			// Docker prefixes names with /
			if strings.TrimPrefix(n, "/") != name {
				continue
			}
			d.logger.Debug("found container",
				"name", name,
				"id", ShortID(c.ID),
				"state", c.State,
				"all", all,
			)
			return &Container{
				ID:    c.ID,
				Name:  name,
				Image: c.Image,
				State: c.State,
			}, nil
		}
	}

	return nil, nil
}
