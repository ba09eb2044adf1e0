package container

import "context"

// Runtime abstracts the container operations the supervisor needs.
// Implemented by Docker; faked in tests.
type Runtime interface {
	// Find returns the container whose name equals name exactly, or nil if
	// there is none. With all=false only running containers are considered.
	Find(ctx context.Context, name string, all bool) (*Container, error)
	// Start resumes an existing, stopped container.
	Start(ctx context.Context, name string) error
	// Create creates (but does not start) a container for h and returns its ID.
	Create(ctx context.Context, h ServiceHandle) (string, error)
	Inspect(ctx context.Context, name string) (*Container, error)
}

// ServiceHandle identifies the managed container. It is rebuilt from
// configuration on every run; the runtime owns the container itself.
type ServiceHandle struct {
	Name          string
	Image         string
	HostPort      int
	ContainerPort int
	RestartPolicy string
}

// Container is a container as observed from the runtime.
type Container struct {
	ID    string
	Name  string
	Image string
	State string
}

// ShortID returns the 12-character form of a container ID.
func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Unavailable is a Runtime whose every call fails with Err. It stands in
// when no daemon connection could be set up.
type Unavailable struct {
	Err error
}

func (u Unavailable) Find(context.Context, string, bool) (*Container, error) {
	return nil, u.Err
}

func (u Unavailable) Start(context.Context, string) error {
	return u.Err
}

func (u Unavailable) Create(context.Context, ServiceHandle) (string, error) {
	return "", u.Err
}

func (u Unavailable) Inspect(context.Context, string) (*Container, error) {
	return nil, u.Err
}
