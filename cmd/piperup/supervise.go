package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"piperup/internal/bus"
	"piperup/internal/config"
	"piperup/internal/container"
	"piperup/internal/delegate"
	"piperup/internal/events"
	"piperup/internal/metrics"
	"piperup/internal/supervisor"
)

// flushTimeout bounds the metrics push and bus flush before exec.
const flushTimeout = 2 * time.Second

// deps are the collaborators of one supervised run.
type deps struct {
	runtime container.Runtime
	prober  container.Prober
	exec    func(delegate.Command) error
	logger  *slog.Logger
}

func runSupervise(cmd *cobra.Command, _ []string) error {
	cfg, _, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, verbose, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rt container.Runtime
	docker, err := container.NewClient()
	if err != nil {
		logger.Warn("docker client unavailable", "error", err)
		rt = container.Unavailable{Err: err}
	} else {
		rt = container.NewDocker(docker, logger)
	}

	d := deps{
		runtime: rt,
		prober:  container.NewHTTPProber(cfg.Health.Timeout),
		exec: func(c delegate.Command) error {
			stop()
			if docker != nil {
				_ = docker.Close()
			}
			return delegate.Exec(c)
		},
		logger: logger,
	}
	return supervise(ctx, cfg, d)
}

// supervise brings the service up and hands the process to the delegate
// command. Only cancellation and the final exec can fail it.
func supervise(ctx context.Context, cfg *config.Config, d deps) error {
	runID := uuid.NewString()
	logger := d.logger.With("run_id", runID)

	emitter := events.NewEmitter(runID, logger)
	m := metrics.New()
	m.RegisterEventHandler(emitter)

	var pub *bus.Publisher
	if cfg.Bus.URL != "" {
		p, err := bus.Connect(bus.Config{
			URL:            cfg.Bus.URL,
			Token:          cfg.Bus.Token,
			Subject:        cfg.Bus.Subject,
			ConnectTimeout: cfg.Bus.ConnectTimeout,
		}, "piperup", logger)
		if err != nil {
			logger.Warn("event bus unavailable", "error", err)
		} else {
			pub = p
			pub.RegisterEventHandler(emitter)
		}
	}

	sup := supervisor.New(d.runtime, d.prober, supervisorConfig(cfg), emitter, logger)
	res := sup.Run(ctx)
	logger.Info("supervision finished",
		"action", string(res.Action),
		"ready", res.Readiness.Ready,
		"skipped", res.Readiness.Skipped,
		"attempts", res.Readiness.Attempts,
	)

	if dir, ok := delegate.AdjustPath(cfg.Delegate.ExtraPath); ok {
		logger.Debug("extended PATH", "dir", dir)
	}

	cmd := delegate.Command{
		Argv: cfg.Delegate.Command,
		Dir:  delegateDir(cfg.Delegate.Dir, logger),
	}
	emitter.Emit(events.Event{
		Type:    events.DelegateExec,
		Service: cfg.Service.Name,
		Fields:  map[string]string{"command": cmd.Argv[0], "dir": cmd.Dir},
	})

	flush(ctx, cfg, m, pub, logger)

	// An interrupt during warm-up aborts the run; the user asked for
	// nothing to be started.
	if err := ctx.Err(); err != nil {
		logger.Warn("interrupted, not delegating", "error", err)
		return fmt.Errorf("interrupted before delegation: %w", err)
	}

	return d.exec(cmd)
}

func supervisorConfig(cfg *config.Config) supervisor.Config {
	return supervisor.Config{
		Handle: container.ServiceHandle{
			Name:          cfg.Service.Name,
			Image:         cfg.Service.Image,
			HostPort:      cfg.Service.HostPort,
			ContainerPort: cfg.Service.ContainerPort,
			RestartPolicy: cfg.Service.RestartPolicy,
		},
		HealthURL:   cfg.Health.URL,
		Ready:       container.ReadySet(cfg.Health.ReadyStatus),
		MaxAttempts: cfg.Health.MaxAttempts,
		Interval:    cfg.Health.Interval,
	}
}

// delegateDir is the configured directory, or the one holding the binary.
// An empty result means "inherit the current directory".
func delegateDir(configured string, logger *slog.Logger) string {
	if configured != "" {
		dir, err := delegate.ExpandHome(configured)
		if err != nil {
			logger.Warn("cannot expand delegate dir", "dir", configured, "error", err)
			return configured
		}
		return dir
	}
	dir, err := delegate.ExecutableDir()
	if err != nil {
		logger.Warn("cannot locate executable dir, keeping cwd", "error", err)
		return ""
	}
	return dir
}

// flush pushes metrics and drains the bus. Both are best effort: nothing
// runs after exec, so this is the last chance and failures are dropped.
func flush(ctx context.Context, cfg *config.Config, m *metrics.Metrics, pub *bus.Publisher, logger *slog.Logger) {
	if cfg.Metrics.Pushgateway != "" {
		pctx, cancel := context.WithTimeout(ctx, flushTimeout)
		err := m.Push(pctx, cfg.Metrics.Pushgateway, cfg.Metrics.Job, cfg.Service.Name)
		cancel()
		if err != nil {
			logger.Warn("metrics push failed", "error", err)
		}
	}
	if pub != nil {
		if err := pub.Close(flushTimeout); err != nil {
			logger.Warn("event bus flush failed", "error", err)
		}
	}
}
