package events

import (
	"log/slog"
	"sync"
	"time"
)

// Event type constants.
const (
	ServiceAlreadyRunning = "service.already_running"
	ServiceResumed        = "service.resumed"
	ServiceCreated        = "service.created"
	ServiceActionFailed   = "service.action_failed"
	ProbeAttempt          = "probe.attempt"
	ServiceReady          = "service.ready"
	ServiceNotReady       = "service.not_ready"
	DelegateExec          = "delegate.exec"
)

// Event is one supervisor lifecycle step for a service.
type Event struct {
	Type      string            `json:"type"`
	Service   string            `json:"service"`
	RunID     string            `json:"run_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Emitter logs events and dispatches them to registered handlers.
type Emitter struct {
	logger   *slog.Logger
	runID    string
	mu       sync.RWMutex
	handlers []func(Event)
}

// NewEmitter creates an emitter that stamps every event with runID.
func NewEmitter(runID string, logger *slog.Logger) *Emitter {
	return &Emitter{
		logger: logger.With("component", "events"),
		runID:  runID,
	}
}

// Emit logs the event and calls all registered handlers.
func (e *Emitter) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.RunID == "" {
		ev.RunID = e.runID
	}

	attrs := []any{
		"event", ev.Type,
		"service", ev.Service,
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, k, v)
	}
	e.logger.Debug("event emitted", attrs...)

	e.mu.RLock()
	handlers := e.handlers
	e.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// OnEvent registers a handler for every event emitted after the call.
// Handlers live as long as the emitter, which is one supervised run.
func (e *Emitter) OnEvent(fn func(Event)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, fn)
}
