package internal

import (
	"context"
	"log/slog"
)

const (
	// LevelTrace logs per-cycle detail below slog.LevelDebug.
	LevelTrace slog.Level = slog.LevelDebug - 2
)

// LogEnabled reports whether l is non-nil and enabled at lvl.
func LogEnabled(l *slog.Logger, lvl slog.Level) bool {
	return l != nil && l.Handler().Enabled(context.Background(), lvl)
}

// LogAttrs logs msg with attrs on l at lvl. Nil loggers are a no-op so
// codecs can keep logging calls unconditional.
func LogAttrs(l *slog.Logger, lvl slog.Level, msg string, attrs ...slog.Attr) {
	if !LogEnabled(l, lvl) {
		return
	}
	l.LogAttrs(context.Background(), lvl, msg, attrs...)
}
