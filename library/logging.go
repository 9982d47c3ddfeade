package library

import (
	"io"
	"log/slog"
)

// Logger receives operational messages. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var discardLogger Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
