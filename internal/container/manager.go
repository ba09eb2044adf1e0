package container

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// Docker implements Runtime on the Docker Engine API.
type Docker struct {
	docker client.APIClient
	logger *slog.Logger
}

// NewClient connects to the daemon configured by the DOCKER_* environment.
func NewClient() (*client.Client, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

func NewDocker(docker client.APIClient, logger *slog.Logger) *Docker {
	return &Docker{
		docker: docker,
		logger: logger.With("component", "docker"),
	}
}

func (d *Docker) Start(ctx context.Context, name string) error {
	d.logger.Info("starting container", "container", name)
	if err := d.docker.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %q: %w", name, err)
	}
	return nil
}

func (d *Docker) Create(ctx context.Context, h ServiceHandle) (string, error) {
	port, err := nat.NewPort("tcp", strconv.Itoa(h.ContainerPort))
	if err != nil {
		return "", fmt.Errorf("container port %d: %w", h.ContainerPort, err)
	}

	cfg := &container.Config{
		Image:        h.Image,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostPort: strconv.Itoa(h.HostPort)}},
		},
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyMode(h.RestartPolicy),
		},
	}

	d.logger.Info("creating container",
		"container", h.Name,
		"image", h.Image,
		"ports", fmt.Sprintf("%d:%d", h.HostPort, h.ContainerPort),
		"restart", h.RestartPolicy,
	)
	resp, err := d.docker.ContainerCreate(ctx, cfg, hostCfg, nil, nil, h.Name)
	if err != nil {
		return "", fmt.Errorf("create container %q: %w", h.Name, err)
	}
	for _, w := range resp.Warnings {
		d.logger.Warn("create warning", "container", h.Name, "warning", w)
	}
	return resp.ID, nil
}

func (d *Docker) Inspect(ctx context.Context, name string) (*Container, error) {
	info, err := d.docker.ContainerInspect(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("inspect container %q: %w", name, err)
	}
	c := &Container{
		ID:   info.ID,
		Name: strings.TrimPrefix(info.Name, "/"),
	}
	if info.Config != nil {
		c.Image = info.Config.Image
	}
	if info.State != nil {
		c.State = info.State.Status
	}
	return c, nil
}

// IsNotFound reports whether err means the container does not exist.
func IsNotFound(err error) bool {
	return client.IsErrNotFound(err)
}
