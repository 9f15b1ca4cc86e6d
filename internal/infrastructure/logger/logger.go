package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New JSON logger on stdout tagged with the service name; also becomes the slog default
func New(service, level string) *slog.Logger {
	log := NewWithWriter(os.Stdout, service, level)
	slog.SetDefault(log)
	return log
}

// NewWithWriter JSON logger writing to w
func NewWithWriter(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "timestamp"
			}
			return a
		},
	}).WithAttrs([]slog.Attr{
		slog.String("service", service),
		slog.String("hostname", hostname()),
	})

	return slog.New(handler)
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

func hostname() string {
	name, _ := os.Hostname()
	return name
}
