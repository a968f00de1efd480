package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns the daemon's structured logger.
// level: "debug", "info", "warn", "error" (default "info").
// format: "json" or "text" (default "text"; the daemon usually runs in a
// terminal next to the viewer, where text output is the useful one).
func New(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(h).With(slog.String("service", "previewd"))
}
