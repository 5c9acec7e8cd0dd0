package patchbay

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record; Enabled returns false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger sets the default logger for sessions created afterwards.
// By default patchbay logs nothing. Pass nil to restore silence.
//
// Log levels used:
//   - [slog.LevelDebug]: patch creation, sequencer start/stop
//   - [slog.LevelInfo]: session and output device lifecycle
//   - [slog.LevelWarn]: input devices that could not be opened
//   - [slog.LevelError]: scheduled callbacks that failed or panicked
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current default logger. It is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
