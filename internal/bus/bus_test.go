package bus

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"

	"piperup/internal/events"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// startTestServer starts an in-memory NATS server on a random port.
func startTestServer(t *testing.T) *server.Server {
	t.Helper()
	opts := test.DefaultTestOptions
	opts.Port = -1
	srv := test.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestPublishedEventsReachSubscribers(t *testing.T) {
	srv := startTestServer(t)

	sub, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	msgs := make(chan *nats.Msg, 4)
	if _, err := sub.ChanSubscribe("piperup.events.>", msgs); err != nil {
		t.Fatal(err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatal(err)
	}

	pub, err := Connect(Config{
		URL:            srv.ClientURL(),
		Subject:        "piperup.events",
		ConnectTimeout: time.Second,
	}, "piperup", quietLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	emitter := events.NewEmitter("run-42", quietLogger())
	pub.RegisterEventHandler(emitter)
	emitter.Emit(events.Event{Type: events.ServiceCreated, Service: "piper"})
	if err := pub.Close(time.Second); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case msg := <-msgs:
		if msg.Subject != "piperup.events.service.created" {
			t.Errorf("subject = %q", msg.Subject)
		}
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.Type != events.ServiceCreated || env.Source != "piperup" {
			t.Errorf("envelope = %+v", env)
		}
		if env.CorrelationID != "run-42" {
			t.Errorf("correlation id = %q, want run-42", env.CorrelationID)
		}
		if env.ID == "" {
			t.Error("envelope id should be set")
		}
		var ev events.Event
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if ev.Service != "piper" {
			t.Errorf("service = %q", ev.Service)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestConnectUnreachable(t *testing.T) {
	_, err := Connect(Config{
		URL:            "nats://127.0.0.1:1",
		Subject:        "piperup.events",
		ConnectTimeout: 100 * time.Millisecond,
	}, "piperup", quietLogger())
	if err == nil {
		t.Fatal("expected connect error")
	}
}

func TestSubject(t *testing.T) {
	p := &Publisher{subject: "tts.supervisor"}
	if got := p.Subject(events.DelegateExec); got != "tts.supervisor.delegate.exec" {
		t.Errorf("subject = %q", got)
	}
}
