package logging

import (
	"io"
	"log/slog"
	"os"
)

func New(logFormat, logLevel string) *slog.Logger {
	logger := slog.New(newHandler(os.Stdout, logFormat, ParseLevel(logLevel)))

	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps a configured level name to a slog level. Unknown names are info.
func ParseLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(w io.Writer, logFormat string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	if logFormat == "text" {
		return slog.NewTextHandler(w, opts)
	}

	return slog.NewJSONHandler(w, opts)
}
