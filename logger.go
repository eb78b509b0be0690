package main

import (
	"io"
	"log/slog"
)

// NewLogger returns a structured JSON slog.Logger writing to w at the
// given level. The shell logs to stderr so stdout stays clean for
// composing with other tools.
func NewLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
