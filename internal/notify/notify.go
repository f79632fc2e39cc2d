// Package notify is the portal's user-facing message adapter. Callers report
// transient success/error/info messages through the Notifier interface and
// stay decoupled from whatever surface ends up showing them.
package notify

import "log/slog"

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

type Notifier interface {
	Notify(level Level, text string)
}

// LogNotifier writes notifications to slog. It is the default sink for the
// backend; the HTTP layer forwards its own copies to clients.
type LogNotifier struct {
	l *slog.Logger
}

func NewLogNotifier(l *slog.Logger) *LogNotifier {
	if l == nil {
		l = slog.Default()
	}
	return &LogNotifier{l: l}
}

func (n *LogNotifier) Notify(level Level, text string) {
	switch level {
	case LevelError:
		n.l.Error(text, "kind", "user_notice")
	case LevelWarning:
		n.l.Warn(text, "kind", "user_notice")
	default:
		n.l.Info(text, "kind", "user_notice", "level", string(level))
	}
}

// Func adapts a plain function to Notifier.
type Func func(level Level, text string)

func (f Func) Notify(level Level, text string) { f(level, text) }
