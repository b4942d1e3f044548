package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns a structured JSON logger on stdout. Development builds log at
// debug level so denial reasons and skipped work are visible locally.
func New(environment string) *slog.Logger {
	return NewWithWriter(os.Stdout, environment)
}

func NewWithWriter(w io.Writer, environment string) *slog.Logger {
	level := slog.LevelInfo
	if environment == "development" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", "shopcore")
}
