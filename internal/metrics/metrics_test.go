package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"piperup/internal/events"
)

func testEmitter() *events.Emitter {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return events.NewEmitter("run", logger)
}

func TestRegisterEventHandlerUpdatesCounters(t *testing.T) {
	m := New()
	emitter := testEmitter()
	m.RegisterEventHandler(emitter)

	emitter.Emit(events.Event{Type: events.ServiceCreated, Service: "piper"})
	emitter.Emit(events.Event{Type: events.ProbeAttempt, Service: "piper", Fields: map[string]string{"ready": "false"}})
	emitter.Emit(events.Event{Type: events.ProbeAttempt, Service: "piper", Fields: map[string]string{"ready": "false"}})
	emitter.Emit(events.Event{Type: events.ProbeAttempt, Service: "piper", Fields: map[string]string{"ready": "true"}})
	emitter.Emit(events.Event{Type: events.ServiceReady, Service: "piper", Fields: map[string]string{"elapsed": "1.5s"}})

	if v := testutil.ToFloat64(m.Actions.WithLabelValues("created")); v != 1 {
		t.Errorf("created actions = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.ProbeAttempts.WithLabelValues("not_ready")); v != 2 {
		t.Errorf("not_ready probes = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.ProbeAttempts.WithLabelValues("ready")); v != 1 {
		t.Errorf("ready probes = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.ServiceReady); v != 1 {
		t.Errorf("service ready = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.Warmup); v != 1.5 {
		t.Errorf("warmup = %v, want 1.5", v)
	}
}

func TestNotReadyClearsGauge(t *testing.T) {
	m := New()
	emitter := testEmitter()
	m.RegisterEventHandler(emitter)

	emitter.Emit(events.Event{Type: events.ServiceNotReady, Service: "piper", Fields: map[string]string{"elapsed": "15s"}})

	if v := testutil.ToFloat64(m.ServiceReady); v != 0 {
		t.Errorf("service ready = %v, want 0", v)
	}
	if v := testutil.ToFloat64(m.Warmup); v != 15 {
		t.Errorf("warmup = %v, want 15", v)
	}
}

func TestPushGroupsByService(t *testing.T) {
	var method, path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.Actions.WithLabelValues("resumed").Inc()

	if err := m.Push(context.Background(), srv.URL, "piperup", "piper"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if path != "/metrics/job/piperup/service/piper" {
		t.Errorf("path = %q", path)
	}
	if body == "" {
		t.Error("expected a metrics payload")
	}
}

func TestPushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New().Push(context.Background(), srv.URL, "piperup", "piper")
	if err == nil || !strings.Contains(err.Error(), "push metrics") {
		t.Errorf("err = %v, want push error", err)
	}
}
