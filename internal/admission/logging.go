// Package admission provides logging hooks.
package admission

import (
	"io"

	"github.com/rs/zerolog"
)

// Logger provides structured logging hooks.
type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger constructs a logger writing JSON lines to w.
func NewZerologLogger(w io.Writer) *ZerologLogger {
	if w == nil {
		w = io.Discard
	}
	return &ZerologLogger{l: zerolog.New(w).With().Timestamp().Logger()}
}

// Info logs an info message.
func (z *ZerologLogger) Info(msg string, fields map[string]any) {
	if z == nil {
		return
	}
	z.l.Info().Fields(fields).Msg(msg)
}

// Error logs an error message.
func (z *ZerologLogger) Error(msg string, fields map[string]any) {
	if z == nil {
		return
	}
	z.l.Error().Fields(fields).Msg(msg)
}
