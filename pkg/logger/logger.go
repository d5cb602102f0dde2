package logger

import (
	"fmt"
	"log"
	"log/slog"
	"strings"
)

// New returns a stdlib *log.Logger that forwards to slog with a component attribute.
// It serves libraries that only accept *log.Logger (net/http, cron).
func New(base *slog.Logger, component string, level slog.Level) *log.Logger {
	return slog.NewLogLogger(base.With("component", component).Handler(), level)
}

// Printf adapts slog to the Printf(format, args...) shape some libraries expect.
type Printf struct {
	log *slog.Logger
}

// NewPrintf wraps base; messages are logged at info.
func NewPrintf(base *slog.Logger, component string) Printf {
	return Printf{log: base.With("component", component)}
}

func (p Printf) Printf(format string, args ...any) {
	p.log.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
