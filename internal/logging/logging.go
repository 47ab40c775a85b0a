// Package logging defines the Logger capability every component takes at
// construction instead of reaching for a global logger, wrapping
// charmbracelet/log the way desertthunder-ytx's internal/shared package
// does for its CLI logger.
package logging

import (
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the levelled, structured logging capability components depend
// on. Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	With(kv ...any) Logger
}

type charmLogger struct {
	l *charmlog.Logger
}

// New builds a Logger writing to w at the given level ("debug", "info",
// "warn", "error"); an unrecognized level falls back to info.
func New(w io.Writer, level string) Logger {
	l := charmlog.NewWithOptions(w, charmlog.Options{ReportTimestamp: true})
	l.SetLevel(parseLevel(level))
	return &charmLogger{l: l}
}

// NewDefault builds a Logger writing to stderr at info level.
func NewDefault() Logger {
	return New(os.Stderr, "info")
}

func parseLevel(level string) charmlog.Level {
	switch level {
	case "debug":
		return charmlog.DebugLevel
	case "warn":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

func (c *charmLogger) Debug(msg string, kv ...any) { c.l.Debug(msg, kv...) }
func (c *charmLogger) Info(msg string, kv ...any)  { c.l.Info(msg, kv...) }
func (c *charmLogger) Warn(msg string, kv ...any)  { c.l.Warn(msg, kv...) }
func (c *charmLogger) Error(msg string, kv ...any) { c.l.Error(msg, kv...) }

func (c *charmLogger) With(kv ...any) Logger {
	return &charmLogger{l: c.l.With(kv...)}
}
