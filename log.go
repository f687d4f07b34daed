package uam

import (
	"log/slog"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	setLogger(nil)
}

// SetLogger sets the logger used by the compiler. A nil logger discards
// all records, which is the default.
func SetLogger(l *slog.Logger) {
	setLogger(l)
}

func setLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	logger.Store(l)
}

func slogger() *slog.Logger {
	return logger.Load()
}
