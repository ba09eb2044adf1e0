package main

import (
	"io"
	"log/slog"

	"piperup/internal/config"
)

// newLogger builds the slog logger. With level "off" everything is
// discarded so the delegated process owns the terminal.
func newLogger(l config.Log, verbose bool, w io.Writer) *slog.Logger {
	level := l.Level
	if verbose {
		level = "debug"
	}

	var lv slog.Level
	switch level {
	case "off":
		return slog.New(slog.DiscardHandler)
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lv}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
