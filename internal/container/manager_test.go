package container

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/docker/docker/client"
)

const fakeID = "4f2a9c1be3d76b5e8a0c9d1f2e3a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c"

// fakeEngine is a minimal Docker Engine API. It records every request path.
type fakeEngine struct {
	mu         sync.Mutex
	paths      []string
	containers []map[string]any // list response, already filtered by test setup
	createBody map[string]any
	createName string
	startErr   bool
}

func (f *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/containers/json"):
		all := r.URL.Query().Get("all") == "1"
		var out []map[string]any
		for _, c := range f.containers {
			if all || c["State"] == "running" {
				out = append(out, c)
			}
		}
		if out == nil {
			out = []map[string]any{}
		}
		json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/containers/create"):
		f.mu.Lock()
		f.createName = r.URL.Query().Get("name")
		json.NewDecoder(r.Body).Decode(&f.createBody)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"Id": fakeID, "Warnings": []string{}})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/start"):
		if f.startErr {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"message": "port is already allocated"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/piper/json"):
		json.NewEncoder(w).Encode(map[string]any{
			"Id":     fakeID,
			"Name":   "/piper",
			"State":  map[string]any{"Status": "exited", "Running": false},
			"Config": map[string]any{"Image": "piper-tts-mcp:latest"},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "No such container"})
	}
}

func newTestDocker(t *testing.T, engine *fakeEngine) *Docker {
	t.Helper()
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	cli, err := client.NewClientWithOpts(
		client.WithHost("tcp://"+srv.Listener.Addr().String()),
		client.WithHTTPClient(srv.Client()),
		client.WithVersion("1.45"),
	)
	if err != nil {
		t.Fatalf("docker client: %v", err)
	}
	t.Cleanup(func() { cli.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewDocker(cli, logger)
}

func TestFindRunningOnly(t *testing.T) {
	engine := &fakeEngine{containers: []map[string]any{
		{"Id": fakeID, "Names": []string{"/piper"}, "Image": "piper-tts-mcp:latest", "State": "exited"},
	}}
	d := newTestDocker(t, engine)

	c, err := d.Find(context.Background(), "piper", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Errorf("expected no running container, got %+v", c)
	}

	c, err = d.Find(context.Background(), "piper", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil || c.State != "exited" || c.ID != fakeID {
		t.Errorf("unexpected container: %+v", c)
	}
}

func TestFindIgnoresPartialNameMatch(t *testing.T) {
	engine := &fakeEngine{containers: []map[string]any{
		{"Id": fakeID, "Names": []string{"/piper-old"}, "State": "running"},
	}}
	d := newTestDocker(t, engine)

	c, err := d.Find(context.Background(), "piper", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Errorf("expected no match for piper-old, got %+v", c)
	}
}

func TestCreateSendsPortMappingAndRestartPolicy(t *testing.T) {
	engine := &fakeEngine{}
	d := newTestDocker(t, engine)

	id, err := d.Create(context.Background(), ServiceHandle{
		Name:          "piper",
		Image:         "piper-tts-mcp:latest",
		HostPort:      5001,
		ContainerPort: 5000,
		RestartPolicy: "unless-stopped",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != fakeID {
		t.Errorf("id = %q", id)
	}
	if engine.createName != "piper" {
		t.Errorf("create name = %q, want piper", engine.createName)
	}
	if engine.createBody["Image"] != "piper-tts-mcp:latest" {
		t.Errorf("image = %v", engine.createBody["Image"])
	}

	hostCfg, _ := engine.createBody["HostConfig"].(map[string]any)
	bindings, _ := hostCfg["PortBindings"].(map[string]any)
	b, _ := bindings["5000/tcp"].([]any)
	if len(b) != 1 || b[0].(map[string]any)["HostPort"] != "5001" {
		t.Errorf("port bindings = %v, want 5000/tcp -> 5001", bindings)
	}
	restart, _ := hostCfg["RestartPolicy"].(map[string]any)
	if restart["Name"] != "unless-stopped" {
		t.Errorf("restart policy = %v", restart)
	}
}

func TestStartError(t *testing.T) {
	engine := &fakeEngine{startErr: true}
	d := newTestDocker(t, engine)

	err := d.Start(context.Background(), "piper")
	if err == nil {
		t.Fatal("expected start error")
	}
	if !strings.Contains(err.Error(), `start container "piper"`) {
		t.Errorf("error = %q", err)
	}
}

func TestInspect(t *testing.T) {
	d := newTestDocker(t, &fakeEngine{})

	c, err := d.Inspect(context.Background(), "piper")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "piper" || c.State != "exited" || c.Image != "piper-tts-mcp:latest" {
		t.Errorf("unexpected container: %+v", c)
	}
}

func TestInspectNotFound(t *testing.T) {
	d := newTestDocker(t, &fakeEngine{})

	_, err := d.Inspect(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}
