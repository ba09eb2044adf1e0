package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"piperup/internal/config"
	"piperup/internal/container"
)

// statusReport is what `piperup status` prints. Nothing is started.
type statusReport struct {
	Name         string `json:"name"`
	ID           string `json:"id,omitempty"`
	Image        string `json:"image"`
	State        string `json:"state"`
	Ports        string `json:"ports"`
	HealthURL    string `json:"health_url"`
	HealthStatus int    `json:"health_status,omitempty"`
	Ready        bool   `json:"ready"`
	Error        string `json:"error,omitempty"`
}

func statusCmd() *cobra.Command {
	var (
		format string
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the container state and probe the service once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log, verbose, cmd.ErrOrStderr())

			var rt container.Runtime
			docker, dockerErr := container.NewClient()
			if dockerErr != nil {
				rt = container.Unavailable{Err: dockerErr}
			} else {
				defer docker.Close()
				rt = container.NewDocker(docker, logger)
			}

			report := collectStatus(cmd.Context(), rt, container.NewHTTPProber(cfg.Health.Timeout), cfg)
			if err := printStatus(cmd.OutOrStdout(), report, format); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			if docker == nil {
				return fmt.Errorf("watch: %w", dockerErr)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			w := container.NewWatcher(docker, cfg.Service.Name, logger)
			return w.Watch(ctx, func(sc container.StateChange) {
				printStateChange(cmd.OutOrStdout(), sc, format)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and print container state changes")
	return cmd
}

func collectStatus(ctx context.Context, rt container.Runtime, prober container.Prober, cfg *config.Config) statusReport {
	r := statusReport{
		Name:      cfg.Service.Name,
		Image:     cfg.Service.Image,
		Ports:     fmt.Sprintf("%d->%d/tcp", cfg.Service.HostPort, cfg.Service.ContainerPort),
		HealthURL: cfg.Health.URL,
	}

	c, err := rt.Inspect(ctx, cfg.Service.Name)
	switch {
	case err == nil:
		r.ID = container.ShortID(c.ID)
		r.State = c.State
		if c.Image != "" {
			r.Image = c.Image
		}
	case container.IsNotFound(err):
		r.State = "absent"
	default:
		r.State = "unknown"
		r.Error = err.Error()
	}

	code, err := prober.Probe(ctx, cfg.Health.URL)
	r.HealthStatus = code
	r.Ready = err == nil && container.ReadySet(cfg.Health.ReadyStatus).Contains(code)
	if err != nil && r.Error == "" {
		r.Error = err.Error()
	}
	return r
}

func printStatus(w io.Writer, r statusReport, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	health := "-"
	if r.HealthStatus != 0 {
		health = fmt.Sprintf("%d", r.HealthStatus)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tIMAGE\tSTATE\tPORTS\tHEALTH\tREADY")
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n", r.Name, r.Image, r.State, r.Ports, health, r.Ready)
	if err := tw.Flush(); err != nil {
		return err
	}
	if r.Error != "" {
		fmt.Fprintf(w, "\nerror: %s\n", r.Error)
	}
	return nil
}

func printStateChange(w io.Writer, sc container.StateChange, format string) {
	if format == "json" {
		_ = json.NewEncoder(w).Encode(sc)
		return
	}
	line := fmt.Sprintf("%s  %s  %s", time.Now().Format(time.TimeOnly), sc.Name, sc.Action)
	if sc.Health != "" {
		line += " (" + sc.Health + ")"
	}
	fmt.Fprintln(w, line)
}
