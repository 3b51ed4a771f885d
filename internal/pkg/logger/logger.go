package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New creates a configured *slog.Logger writing to stderr. The level
// parameter accepts "debug", "info", "warn", "error" (case-insensitive)
// and defaults to info for anything unrecognized.
func New(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
