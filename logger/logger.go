// package logger is a package that provides a structured, leveled logger
// that's context.Context aware.
package logger

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
)

// Level is a log level. Messages below a Logger's level are dropped.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	CRIT
)

var levelNames = []string{"debug", "info", "warn", "error", "crit"}

func (l Level) String() string {
	if l < DEBUG || l > CRIT {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel parses a level name, case insensitive. Unknown names map to INFO.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return WARN
	}
	for i, name := range levelNames {
		if s == name {
			return Level(i)
		}
	}
	return INFO
}

// Logger represents a structured leveled logger.
type Logger interface {
	Debug(msg string, pairs ...interface{})
	Info(msg string, pairs ...interface{})
	Warn(msg string, pairs ...interface{})
	Error(msg string, pairs ...interface{})
	Crit(msg string, pairs ...interface{})

	// With returns a Logger that prepends pairs to every message.
	With(pairs ...interface{}) Logger
}

// DefaultLogger is used by the package level functions when the context
// carries no Logger.
var DefaultLogger Logger = New(log.New(os.Stderr, "", log.LstdFlags), INFO)

// logger is an implementation of the Logger interface backed by the stdlib's
// logging facility. Pairs are written in logfmt.
type logger struct {
	*log.Logger
	level Level
	pairs []interface{}
}

// New wraps the log.Logger to implement the Logger interface.
func New(l *log.Logger, level Level) Logger {
	return &logger{
		Logger: l,
		level:  level,
	}
}

func (l *logger) Debug(msg string, pairs ...interface{}) { l.log(DEBUG, msg, pairs...) }
func (l *logger) Info(msg string, pairs ...interface{})  { l.log(INFO, msg, pairs...) }
func (l *logger) Warn(msg string, pairs ...interface{})  { l.log(WARN, msg, pairs...) }
func (l *logger) Error(msg string, pairs ...interface{}) { l.log(ERROR, msg, pairs...) }
func (l *logger) Crit(msg string, pairs ...interface{})  { l.log(CRIT, msg, pairs...) }

func (l *logger) With(pairs ...interface{}) Logger {
	return &logger{
		Logger: l.Logger,
		level:  l.level,
		pairs:  append(append([]interface{}{}, l.pairs...), pairs...),
	}
}

func (l *logger) log(level Level, msg string, pairs ...interface{}) {
	if level < l.level {
		return
	}
	all := append(append([]interface{}{}, l.pairs...), pairs...)
	l.Println("status="+level.String(), msg, message(all...))
}

func message(pairs ...interface{}) string {
	if len(pairs) == 1 {
		return fmt.Sprintf("%v", pairs[0])
	}

	var parts []string

	for i := 0; i < len(pairs); i += 2 {
		// Uneven pairs: the last value is treated as a plain message.
		//
		//	["key", "value", "message"] => key=value message
		if len(pairs) == i+1 {
			parts = append(parts, fmt.Sprintf("%v", pairs[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%s=%v", pairs[i], pairs[i+1]))
		}
	}

	return strings.Join(parts, " ")
}

// WithLogger inserts a Logger into the provided context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the Logger from the context.
func FromContext(ctx context.Context) (Logger, bool) {
	l, ok := ctx.Value(loggerKey).(Logger)
	return l, ok
}

func Debug(ctx context.Context, msg string, pairs ...interface{}) {
	withLogger(ctx, func(l Logger) { l.Debug(msg, pairs...) })
}

func Info(ctx context.Context, msg string, pairs ...interface{}) {
	withLogger(ctx, func(l Logger) { l.Info(msg, pairs...) })
}

func Warn(ctx context.Context, msg string, pairs ...interface{}) {
	withLogger(ctx, func(l Logger) { l.Warn(msg, pairs...) })
}

func Error(ctx context.Context, msg string, pairs ...interface{}) {
	withLogger(ctx, func(l Logger) { l.Error(msg, pairs...) })
}

func Crit(ctx context.Context, msg string, pairs ...interface{}) {
	withLogger(ctx, func(l Logger) { l.Crit(msg, pairs...) })
}

func withLogger(ctx context.Context, fn func(l Logger)) {
	if ctx != nil {
		if l, ok := FromContext(ctx); ok {
			fn(l)
			return
		}
	}
	fn(DefaultLogger)
}

type key int

const (
	loggerKey key = iota
)
