// Package supervisor makes sure the managed service container is up and
// answering before control is handed to the foreground process.
//
// Every runtime and probe failure is recorded and then dropped: the caller
// proceeds to delegation, and the delegated process is the one that fails
// loudly if the service never came up. Only cancellation of the context
// (an interrupt from the invoking shell) ends polling early, and it is
// reported in Readiness.Interrupted so the caller can abort instead.
package supervisor

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"piperup/internal/container"
	"piperup/internal/events"
)

// Action is what Ensure did to get the container running.
type Action string

const (
	AlreadyRunning Action = "already_running"
	Resumed        Action = "resumed"
	Created        Action = "created"
)

type Config struct {
	Handle      container.ServiceHandle
	HealthURL   string
	Ready       container.ReadySet
	MaxAttempts int
	Interval    time.Duration
}

// Readiness is the outcome of the warm-up poll.
type Readiness struct {
	// Skipped is set when the container was already running and no probe
	// was sent.
	Skipped     bool
	// Interrupted is set when ctx was cancelled before polling finished.
	Interrupted bool
	Ready       bool
	Attempts    int
	LastStatus  int
	LastErr     error
	Elapsed     time.Duration
}

type Result struct {
	Action Action
	// ActionErr is the suppressed error from the start or create call.
	ActionErr error
	Readiness Readiness
}

type Supervisor struct {
	runtime container.Runtime
	prober  container.Prober
	cfg     Config
	emitter *events.Emitter
	logger  *slog.Logger
}

func New(rt container.Runtime, prober container.Prober, cfg Config, emitter *events.Emitter, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		runtime: rt,
		prober:  prober,
		cfg:     cfg,
		emitter: emitter,
		logger:  logger.With("component", "supervisor", "service", cfg.Handle.Name),
	}
}

// Run ensures the container exists and is started, then polls it unless it
// was already running. It never fails; problems are reported in Result.
func (s *Supervisor) Run(ctx context.Context) Result {
	action, err := s.Ensure(ctx)
	res := Result{Action: action, ActionErr: err}

	if action == AlreadyRunning {
		// Trusted without probing: it was validated by the run that started it.
		res.Readiness = Readiness{Skipped: true}
		return res
	}

	res.Readiness = s.WaitReady(ctx)
	return res
}

// Ensure reuses a running container, resumes a stopped one, or creates and
// starts a new one. The returned error is informational only.
func (s *Supervisor) Ensure(ctx context.Context) (Action, error) {
	name := s.cfg.Handle.Name

	running, err := s.runtime.Find(ctx, name, false)
	if err != nil {
		// Treated as "not running".
		s.logger.Warn("running container lookup failed", "error", err)
	}
	if running != nil {
		s.logger.Info("container already running", "id", container.ShortID(running.ID), "state", running.State)
		s.emit(events.ServiceAlreadyRunning, map[string]string{"id": container.ShortID(running.ID)})
		return AlreadyRunning, nil
	}

	existing, err := s.runtime.Find(ctx, name, true)
	if err != nil {
		// Treated as "absent"; a duplicate create below fails harmlessly.
		s.logger.Warn("container lookup failed", "error", err)
	}

	if existing != nil {
		s.logger.Info("resuming stopped container", "id", container.ShortID(existing.ID), "state", existing.State)
		err := s.runtime.Start(ctx, name)
		s.emit(events.ServiceResumed, map[string]string{"id": container.ShortID(existing.ID), "previous_state": existing.State})
		s.reportActionErr(Resumed, err)
		return Resumed, err
	}

	s.logger.Info("creating container", "image", s.cfg.Handle.Image)
	id, err := s.runtime.Create(ctx, s.cfg.Handle)
	if err == nil {
		err = s.runtime.Start(ctx, name)
	}
	s.emit(events.ServiceCreated, map[string]string{"id": container.ShortID(id), "image": s.cfg.Handle.Image})
	s.reportActionErr(Created, err)
	return Created, err
}

// WaitReady probes the health URL up to MaxAttempts times, Interval apart,
// and stops at the first status in the ready set. Exhaustion is not an error.
func (s *Supervisor) WaitReady(ctx context.Context) Readiness {
	var r Readiness
	start := time.Now()
	s.logger.Info("polling health", "url", s.cfg.HealthURL, "max_attempts", s.cfg.MaxAttempts, "interval", s.cfg.Interval)

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		code, err := s.prober.Probe(ctx, s.cfg.HealthURL)
		r.Attempts = attempt
		r.LastStatus = code
		r.LastErr = err

		ok := err == nil && s.cfg.Ready.Contains(code)
		s.emit(events.ProbeAttempt, map[string]string{
			"attempt": strconv.Itoa(attempt),
			"status":  strconv.Itoa(code),
			"ready":   strconv.FormatBool(ok),
		})
		if ok {
			r.Ready = true
			r.Elapsed = time.Since(start)
			s.logger.Info("service ready", "attempts", attempt, "status", code, "elapsed", r.Elapsed)
			s.emit(events.ServiceReady, map[string]string{
				"attempts": strconv.Itoa(attempt),
				"status":   strconv.Itoa(code),
				"elapsed":  r.Elapsed.String(),
			})
			return r
		}
		if err != nil {
			s.logger.Debug("probe failed", "attempt", attempt, "error", err)
		}

		if attempt == s.cfg.MaxAttempts {
			break
		}
		if !sleep(ctx, s.cfg.Interval) {
			r.Interrupted = true
			break
		}
	}

	r.Elapsed = time.Since(start)
	if r.Interrupted {
		s.logger.Warn("polling interrupted", "attempts", r.Attempts, "elapsed", r.Elapsed, "error", ctx.Err())
		return r
	}
	s.logger.Warn("service not ready, continuing anyway", "attempts", r.Attempts, "last_status", r.LastStatus, "elapsed", r.Elapsed)
	s.emit(events.ServiceNotReady, map[string]string{
		"attempts": strconv.Itoa(r.Attempts),
		"elapsed":  r.Elapsed.String(),
	})
	return r
}

func (s *Supervisor) reportActionErr(action Action, err error) {
	if err == nil {
		return
	}
	s.logger.Warn("container action failed, polling anyway", "action", string(action), "error", err)
	s.emit(events.ServiceActionFailed, map[string]string{"action": string(action), "error": err.Error()})
}

func (s *Supervisor) emit(typ string, fields map[string]string) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(events.Event{Type: typ, Service: s.cfg.Handle.Name, Fields: fields})
}

// sleep waits d or until ctx is done; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
