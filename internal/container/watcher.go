package container

import (
	"context"
	"log/slog"
	"strings"

	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// StateChange is a lifecycle transition of the watched container.
type StateChange struct {
	Action string
	ID     string
	Name   string
	Health string
}

// Watcher follows Docker events for one container.
type Watcher struct {
	docker client.SystemAPIClient
	name   string
	logger *slog.Logger
}

func NewWatcher(docker client.SystemAPIClient, name string, logger *slog.Logger) *Watcher {
	return &Watcher{
		docker: docker,
		name:   name,
		logger: logger.With("component", "docker-watcher", "container", name),
	}
}

// Watch calls fn for each start, stop, die, restart or health_status event
// of the container. It blocks until ctx is cancelled or the stream fails.
func (w *Watcher) Watch(ctx context.Context, fn func(StateChange)) error {
	f := filters.NewArgs()
	f.Add("type", string(events.ContainerEventType))
	f.Add("container", w.name)

	msgCh, errCh := w.docker.Events(ctx, events.ListOptions{Filters: f})

	w.logger.Info("watching Docker events")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case msg := <-msgCh:
			if sc, ok := toStateChange(msg); ok {
				fn(sc)
			}
		}
	}
}

func toStateChange(msg events.Message) (StateChange, bool) {
	if msg.Type != events.ContainerEventType {
		return StateChange{}, false
	}
	sc := StateChange{
		Action: string(msg.Action),
		ID:     ShortID(msg.Actor.ID),
		Name:   msg.Actor.Attributes["name"],
	}
	switch msg.Action {
	case events.ActionStart, events.ActionStop, events.ActionDie, events.ActionRestart:
		return sc, true
	}
	// Health events arrive as "health_status: healthy".
	if status, ok := strings.CutPrefix(string(msg.Action), "health_status: "); ok {
		sc.Action = "health_status"
		sc.Health = status
		return sc, true
	}
	return StateChange{}, false
}
