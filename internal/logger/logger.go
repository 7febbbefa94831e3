// Package logger owns the process-wide slog setup.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// L is the process logger. Init replaces it; packages that need a tagged
// logger derive one with Named or With.
var L = slog.Default()

// Init configures the process logger. Format "json" selects the JSON
// handler, anything else the text handler. Unknown levels fall back to info.
func Init(level, format string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	L = slog.New(h)
	slog.SetDefault(L)
}

// Named returns the process logger tagged with a component name.
func Named(name string) *slog.Logger {
	return L.With(slog.String("component", name))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
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
