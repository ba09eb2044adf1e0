package container

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"
)

// ReadySet is the set of HTTP status codes that count as "listening".
type ReadySet []int

func (r ReadySet) Contains(code int) bool {
	return slices.Contains(r, code)
}

// Prober issues one readiness probe and returns the HTTP status.
type Prober interface {
	Probe(ctx context.Context, url string) (int, error)
}

// HTTPProber probes with GET. Only the status code matters; the body is
// discarded.
type HTTPProber struct {
	client *http.Client
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProber) Probe(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe failed: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return resp.StatusCode, nil
}
