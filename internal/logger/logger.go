// Package logger is a thin, package-level wrapper over log/slog.
//
// mman is a single-threaded library with no request lifecycle, so this
// intentionally drops the trace-context injection and the runtime level/
// output mutability a server-facing logger needs. It exists only so the
// manager can emit diagnostic Debug/Warn lines (file opens, failed unmaps
// and file closes) without forcing every caller to thread a *slog.Logger
// through every constructor.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Config selects the logger's level and output.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR (default INFO)
	Format string // text, json (default text)
	Output io.Writer
}

var def = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// New builds a *slog.Logger from cfg. A zero Config yields a text logger on
// stderr at Info level, matching the package default.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level := slog.LevelInfo
	switch cfg.Level {
	case "DEBUG", "debug":
		level = slog.LevelDebug
	case "WARN", "warn":
		level = slog.LevelWarn
	case "ERROR", "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h)
}

// Default returns the package's fallback logger, used whenever a caller
// passes a nil *slog.Logger to a manager constructor.
func Default() *slog.Logger {
	return def
}

// OrDefault returns l if non-nil, else Default().
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return def
	}
	return l
}
