// Package logger sets up the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init builds a logger for service and installs it as the slog default.
// JSON output goes to stdout for the API server; the CLI uses text on
// stderr so it does not interleave with menu output.
func Init(service string, level slog.Level, json bool) *slog.Logger {
	var w io.Writer = os.Stderr
	if json {
		w = os.Stdout
	}
	return InitWriter(w, service, level, json)
}

func InitWriter(w io.Writer, service string, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler).With(slog.String("service", service))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps LOG_LEVEL style names to a level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
