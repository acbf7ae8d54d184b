package util

import (
	"github.com/pion/logging"
)

// PionLoggerFactory routes pion's internal logging through pterm. pion is
// chatty at debug level, so its trace and debug output is only visible with
// EnableTrace.
type PionLoggerFactory struct{}

var _ logging.LoggerFactory = PionLoggerFactory{}

// NewLogger implements logging.LoggerFactory.
func (PionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return pionLogger{scope: "pion/" + scope + ": "}
}

type pionLogger struct {
	scope string
}

func (l pionLogger) Trace(msg string)                          { LogTrace("%s%s", l.scope, msg) }
func (l pionLogger) Tracef(format string, args ...interface{}) { LogTrace(l.scope+format, args...) }
func (l pionLogger) Debug(msg string)                          { LogTrace("%s%s", l.scope, msg) }
func (l pionLogger) Debugf(format string, args ...interface{}) { LogTrace(l.scope+format, args...) }
func (l pionLogger) Info(msg string)                           { LogDebug("%s%s", l.scope, msg) }
func (l pionLogger) Infof(format string, args ...interface{})  { LogDebug(l.scope+format, args...) }
func (l pionLogger) Warn(msg string)                           { LogWarning("%s%s", l.scope, msg) }
func (l pionLogger) Warnf(format string, args ...interface{})  { LogWarning(l.scope+format, args...) }
func (l pionLogger) Error(msg string)                          { LogError("%s%s", l.scope, msg) }
func (l pionLogger) Errorf(format string, args ...interface{}) { LogError(l.scope+format, args...) }
