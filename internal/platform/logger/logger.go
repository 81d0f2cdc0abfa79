package logger

import (
	"log/slog"
	"os"
)

// New returns the structured logger used across the engine. JSON on stdout so
// log shippers pick attributes up without parsing.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
