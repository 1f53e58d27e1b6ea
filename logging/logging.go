// Package logging configures the process-wide structured logger. Operator
// diagnostics go through slog to stderr; user-facing chat output never does.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/m4xw311/jarvis/errors"
)

type Options struct {
	Level  string // debug|info|warn|error
	Format string // text|json
}

// New builds a logger from the given options. An empty format means text.
func New(opts Options) (*slog.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	default:
		return nil, errors.New("unsupported log format %q", opts.Format)
	}

	return slog.New(handler), nil
}

func parseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.New("unsupported log level %q", value)
	}
}
