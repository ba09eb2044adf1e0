package config

import (
	"fmt"
	"net/url"
	"regexp"
)

// Docker's container name rule.
var containerName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]+$`)

func validate(cfg *Config) error {
	s := cfg.Service
	if !containerName.MatchString(s.Name) {
		return fmt.Errorf("config: invalid service.name %q", s.Name)
	}
	if s.Image == "" {
		return fmt.Errorf("config: service.image is required")
	}
	if !validPort(s.HostPort) {
		return fmt.Errorf("config: service.host_port %d out of range", s.HostPort)
	}
	if !validPort(s.ContainerPort) {
		return fmt.Errorf("config: service.container_port %d out of range", s.ContainerPort)
	}
	switch s.RestartPolicy {
	case "no", "always", "on-failure", "unless-stopped":
		// valid
	default:
		return fmt.Errorf("config: unknown service.restart_policy %q", s.RestartPolicy)
	}

	h := cfg.Health
	u, err := url.Parse(h.URL)
	if err != nil {
		return fmt.Errorf("config: invalid health.url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: health.url %q must be an absolute http(s) URL", h.URL)
	}
	if len(h.ReadyStatus) == 0 {
		return fmt.Errorf("config: health.ready_status must not be empty")
	}
	for _, code := range h.ReadyStatus {
		if code < 100 || code > 599 {
			return fmt.Errorf("config: health.ready_status has invalid code %d", code)
		}
	}
	if h.MaxAttempts < 1 {
		return fmt.Errorf("config: health.max_attempts must be >= 1")
	}
	if h.Interval <= 0 {
		return fmt.Errorf("config: health.interval must be > 0")
	}
	if h.Timeout <= 0 {
		return fmt.Errorf("config: health.timeout must be > 0")
	}

	if len(cfg.Delegate.Command) == 0 || cfg.Delegate.Command[0] == "" {
		return fmt.Errorf("config: delegate.command is required")
	}

	switch cfg.Log.Level {
	case "off", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("config: unknown log.level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
		// valid
	default:
		return fmt.Errorf("config: unknown log.format %q", cfg.Log.Format)
	}

	if cfg.Metrics.Pushgateway != "" {
		if _, err := url.ParseRequestURI(cfg.Metrics.Pushgateway); err != nil {
			return fmt.Errorf("config: invalid metrics.pushgateway: %w", err)
		}
	}

	return nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
