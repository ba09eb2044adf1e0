package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"piperup/internal/events"
)

// Metrics holds the supervisor's collectors. piperup exits (by exec) long
// before anything could scrape it, so the registry is pushed instead.
type Metrics struct {
	Registry *prometheus.Registry

	Actions       *prometheus.CounterVec
	ProbeAttempts *prometheus.CounterVec
	ServiceReady  prometheus.Gauge
	Warmup        prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "piperup_supervisor_actions_total",
			Help: "Container actions taken by the supervisor",
		}, []string{"action"}),
		ProbeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "piperup_probe_attempts_total",
			Help: "Readiness probe attempts by result",
		}, []string{"result"}),
		ServiceReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "piperup_service_ready",
			Help: "1 if the service answered a readiness probe before delegation",
		}),
		Warmup: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "piperup_warmup_seconds",
			Help: "Time spent polling the service before delegation",
		}),
	}
	m.Registry.MustRegister(m.Actions, m.ProbeAttempts, m.ServiceReady, m.Warmup)
	return m
}

// RegisterEventHandler wires metric updates to the event emitter.
func (m *Metrics) RegisterEventHandler(emitter *events.Emitter) {
	emitter.OnEvent(func(ev events.Event) {
		switch ev.Type {
		case events.ServiceAlreadyRunning:
			m.Actions.WithLabelValues("already_running").Inc()
			m.ServiceReady.Set(1)
		case events.ServiceResumed:
			m.Actions.WithLabelValues("resumed").Inc()
		case events.ServiceCreated:
			m.Actions.WithLabelValues("created").Inc()
		case events.ServiceActionFailed:
			m.Actions.WithLabelValues("failed").Inc()
		case events.ProbeAttempt:
			result := "not_ready"
			if ev.Fields["ready"] == "true" {
				result = "ready"
			}
			m.ProbeAttempts.WithLabelValues(result).Inc()
		case events.ServiceReady:
			m.ServiceReady.Set(1)
			m.observeWarmup(ev)
		case events.ServiceNotReady:
			m.ServiceReady.Set(0)
			m.observeWarmup(ev)
		}
	})
}

func (m *Metrics) observeWarmup(ev events.Event) {
	if d, err := time.ParseDuration(ev.Fields["elapsed"]); err == nil {
		m.Warmup.Set(d.Seconds())
	}
}

// Push sends the registry to a Pushgateway, grouped by service.
func (m *Metrics) Push(ctx context.Context, url, job, service string) error {
	err := push.New(url, job).
		Gatherer(m.Registry).
		Grouping("service", service).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
