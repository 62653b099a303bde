package xlib

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// PrintLog controls whether xlib emits diagnostics to stderr. By default, it
// is enabled.
var PrintLog = true

// xlog is a wrapper around a charmbracelet logger so we can control whether
// it should output anything.
type xlog struct {
	*log.Logger
}

var logger = newLogger()

func newLogger() xlog {
	l := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "xlib",
		ReportTimestamp: false,
	})
	l.SetLevel(parseLevel(os.Getenv("XLIB_LOG_LEVEL")))
	return xlog{l}
}

func parseLevel(s string) log.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return log.DebugLevel
	case "WARN", "WARNING":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	case "FATAL":
		return log.FatalLevel
	}
	return log.InfoLevel
}

// SetLogLevel changes the level of the package logger. Unknown names select
// INFO.
func SetLogLevel(level string) {
	logger.SetLevel(parseLevel(level))
}

func (lg xlog) Debug(msg interface{}, keyvals ...interface{}) {
	if PrintLog {
		lg.Logger.Debug(msg, keyvals...)
	}
}

func (lg xlog) Info(msg interface{}, keyvals ...interface{}) {
	if PrintLog {
		lg.Logger.Info(msg, keyvals...)
	}
}

func (lg xlog) Warn(msg interface{}, keyvals ...interface{}) {
	if PrintLog {
		lg.Logger.Warn(msg, keyvals...)
	}
}

func (lg xlog) Warnf(format string, v ...interface{}) {
	if PrintLog {
		lg.Logger.Warnf(format, v...)
	}
}

func (lg xlog) Error(msg interface{}, keyvals ...interface{}) {
	if PrintLog {
		lg.Logger.Error(msg, keyvals...)
	}
}

func (lg xlog) Errorf(format string, v ...interface{}) {
	if PrintLog {
		lg.Logger.Errorf(format, v...)
	}
}
