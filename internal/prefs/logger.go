package prefs

import (
	"fmt"
	"log/slog"
	"strings"

	"daybook/internal/log"
)

// badgerLogger routes badger's printf-style logging into slog. Badger's
// info chatter (compactions, replays) goes to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(l *slog.Logger) badgerLogger {
	return badgerLogger{logger: l.With(log.FieldComponent, log.ComponentPrefs)}
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.logger.Error(line(format, args))
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.logger.Warn(line(format, args))
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.logger.Debug(line(format, args))
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.logger.Debug(line(format, args))
}

func line(format string, args []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
