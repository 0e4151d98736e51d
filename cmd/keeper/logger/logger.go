// Package logger builds the keeper's slog logger from configuration.
package logger

import (
	"log/slog"
	"os"

	"github.com/veloguard/veloguard/cmd/keeper/config"
)

// New creates a slog.Logger using the configured format and level.
// Unrecognized values fall back to text at info level.
func New(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
