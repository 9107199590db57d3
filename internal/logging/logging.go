// Package logging provides structured logging using slog.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/guygriffiths/wildfire/internal/config"
)

// Setup initializes the global slog logger based on configuration. Logs
// go to stderr so progress output and log lines don't fight over stdout.
func Setup(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
