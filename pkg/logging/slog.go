package logging

import (
	"log/slog"
	"os"
)

func New(service string) *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_DEBUG") == "true" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With("service", service)
}
