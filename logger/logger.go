// Package logger is a thin structured-logging layer on top of logrus.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Ctx is the key/value context attached to a log entry.
type Ctx map[string]any

// Logger is the interface used by every package in this module.
type Logger interface {
	Error(msg string, ctx ...Ctx)
	Warn(msg string, ctx ...Ctx)
	Info(msg string, ctx ...Ctx)
	Debug(msg string, ctx ...Ctx)
	AddContext(ctx Ctx) Logger
}

type targetLogger interface {
	WithFields(fields logrus.Fields) *logrus.Entry
	Error(args ...any)
	Warn(args ...any)
	Info(args ...any)
	Debug(args ...any)
}

type logWrapper struct {
	target targetLogger
}

func (lw *logWrapper) ctxLogger(ctx ...Ctx) targetLogger {
	logger := lw.target
	for _, c := range ctx {
		logger = logger.WithFields(logrus.Fields(c))
	}
	return logger
}

func (lw *logWrapper) Error(msg string, ctx ...Ctx) { lw.ctxLogger(ctx...).Error(msg) }
func (lw *logWrapper) Warn(msg string, ctx ...Ctx)  { lw.ctxLogger(ctx...).Warn(msg) }
func (lw *logWrapper) Info(msg string, ctx ...Ctx)  { lw.ctxLogger(ctx...).Info(msg) }
func (lw *logWrapper) Debug(msg string, ctx ...Ctx) { lw.ctxLogger(ctx...).Debug(msg) }

// AddContext returns a sub-logger with the provided context added.
func (lw *logWrapper) AddContext(ctx Ctx) Logger {
	return &logWrapper{lw.ctxLogger(ctx)}
}

// New returns a Logger writing text entries to w at the given level.
func New(w io.Writer, level logrus.Level) Logger {
	return &logWrapper{newLogrus(w, level)}
}

func newLogrus(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// ParseLevel reads a level name such as "debug" or "warn".
func ParseLevel(name string) (logrus.Level, error) {
	return logrus.ParseLevel(name)
}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return New(io.Discard, logrus.PanicLevel)
}

var (
	std = newLogrus(os.Stderr, logrus.InfoLevel)
	log = Logger(&logWrapper{std})
)

// SetLevel changes the level of the built-in stderr logger.
func SetLevel(level logrus.Level) {
	std.SetLevel(level)
}

// Log returns the package default logger.
func Log() Logger { return log }

// SetLogger replaces the package default logger. Not safe to call concurrently with logging.
func SetLogger(l Logger) {
	if l == nil {
		l = Discard()
	}
	log = l
}

func Error(msg string, ctx ...Ctx) { log.Error(msg, ctx...) }
func Warn(msg string, ctx ...Ctx)  { log.Warn(msg, ctx...) }
func Info(msg string, ctx ...Ctx)  { log.Info(msg, ctx...) }
func Debug(msg string, ctx ...Ctx) { log.Debug(msg, ctx...) }
