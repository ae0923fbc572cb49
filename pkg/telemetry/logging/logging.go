package logging

import (
	"io"
	"log/slog"
	"os"

	"atlas-gw/atlas/pkg/config"
)

// New builds the process logger from configuration. A nil writer
// defaults to stdout. Unknown levels and formats fall back to info/json
// rather than failing startup.
func New(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	if cfg.RedactSecrets == nil || *cfg.RedactSecrets {
		handler = NewRedactHandler(handler)
	}

	return slog.New(handler)
}

// ParseLevel maps a config level string to a slog level, defaulting to
// info.
func ParseLevel(level string) slog.Level {
	switch level {
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
