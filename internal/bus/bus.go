// Package bus publishes supervisor lifecycle events to NATS so that other
// tools on the machine can see when the TTS service was started or failed
// to come up.
package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"piperup/internal/events"
)

// Config holds the NATS connection settings.
type Config struct {
	URL            string
	Token          string
	Subject        string
	ConnectTimeout time.Duration
}

// Envelope is the message published for each event.
type Envelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewEnvelope wraps data with a fresh ID and the current time.
func NewEnvelope(eventType, source string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// Publisher sends events to <subject>.<event type>.
type Publisher struct {
	nc      *nats.Conn
	subject string
	source  string
	logger  *slog.Logger
}

// Connect dials NATS. Reconnects are disabled: the publisher lives for a
// few seconds at most.
func Connect(cfg Config, source string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name(source),
		nats.Timeout(cfg.ConnectTimeout),
		nats.NoReconnect(),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("bus connect: %w", err)
	}

	return &Publisher{
		nc:      nc,
		subject: cfg.Subject,
		source:  source,
		logger:  logger.With("component", "bus"),
	}, nil
}

// Subject returns the subject an event type is published on.
func (p *Publisher) Subject(eventType string) string {
	return p.subject + "." + eventType
}

func (p *Publisher) Publish(ev events.Event) error {
	env, err := NewEnvelope(ev.Type, p.source, ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	env.CorrelationID = ev.RunID
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return p.nc.Publish(p.Subject(ev.Type), data)
}

// RegisterEventHandler publishes every emitted event. Publish errors are
// logged and dropped.
func (p *Publisher) RegisterEventHandler(emitter *events.Emitter) {
	emitter.OnEvent(func(ev events.Event) {
		if err := p.Publish(ev); err != nil {
			p.logger.Warn("publish failed", "event", ev.Type, "error", err)
		}
	})
}

// Close flushes pending messages and closes the connection. It must run
// before the process image is replaced or buffered events are lost.
func (p *Publisher) Close(timeout time.Duration) error {
	if p.nc == nil {
		return nil
	}
	defer p.nc.Close()
	if err := p.nc.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("bus flush: %w", err)
	}
	return nil
}
