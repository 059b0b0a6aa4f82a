package vkr

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards all log records. Enabled returns false so callers
// skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger used by vkr. By default vkr produces no
// log output. Pass nil to restore the silent default.
//
// Levels used by vkr:
//   - slog.LevelDebug: device internals (serials, recycled pools, deletions)
//   - slog.LevelInfo: lifecycle events (instance created, device selected)
//   - slog.LevelWarn: recoverable oddities (suboptimal present, acquire timeout)
//   - slog.LevelError: suppressed teardown failures and validation messages
//
// SetLogger is safe for concurrent use.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the logger currently used by vkr.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
