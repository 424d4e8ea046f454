// Package logging provides leveled, component-scoped logging for voyagekit.
// Entries are written as JSON lines through zerolog so they can be shipped
// as-is. Every entry carries the level, a timestamp and the component, plus
// the trace ID of the call being logged when one is set.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var zerologLevels = map[Level]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// ParseLevel maps a config string (any case) to a Level. Unknown values
// fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(s)) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes structured entries. Derived loggers (WithComponent,
// WithTraceID) share nothing mutable with their parent.
type Logger struct {
	zl        zerolog.Logger
	output    io.Writer
	minLevel  Level
	component string
	traceID   string
	disabled  bool
}

// New creates a Logger writing to stdout at INFO.
func New() *Logger {
	l := &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
	l.rebuild()
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l := &Logger{
		output:   io.Discard,
		minLevel: LevelError,
		disabled: true,
	}
	l.rebuild()
	return l
}

func (l *Logger) clone() *Logger {
	c := *l
	return &c
}

// rebuild recreates the zerolog logger after a settings change.
func (l *Logger) rebuild() {
	if l.disabled {
		l.zl = zerolog.Nop()
		return
	}
	ctx := zerolog.New(zerolog.SyncWriter(l.output)).
		Level(zerologLevels[l.minLevel]).
		With().
		Timestamp()
	if l.component != "" {
		ctx = ctx.Str("component", l.component)
	}
	if l.traceID != "" {
		ctx = ctx.Str("trace_id", l.traceID)
	}
	l.zl = ctx.Logger()
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	c := l.clone()
	c.component = component
	c.rebuild()
	return c
}

// WithTraceID returns a new logger with the given trace ID.
func (l *Logger) WithTraceID(traceID string) *Logger {
	c := l.clone()
	c.traceID = traceID
	c.rebuild()
	return c
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	if _, ok := zerologLevels[level]; !ok {
		level = LevelInfo
	}
	l.minLevel = level
	l.rebuild()
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	l.rebuild()
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(l.zl.Debug(), msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(l.zl.Info(), msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(l.zl.Warn(), msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(l.zl.Error(), msg, fields...)
}

func (l *Logger) log(ev *zerolog.Event, msg string, fields ...map[string]interface{}) {
	if ev == nil {
		return
	}
	if len(fields) > 0 && fields[0] != nil {
		ev = ev.Fields(fields[0])
	}
	ev.Msg(msg)
}

// --- Call lifecycle helpers ---

// RateLimitWait logs a forced wait before a call is dispatched.
func (l *Logger) RateLimitWait(pool string, wait time.Duration, estimate int) {
	l.Info("rate_limit_wait", map[string]interface{}{
		"pool":     pool,
		"wait":     wait.String(),
		"estimate": estimate,
	})
}

// CallStart logs the dispatch of a transport call.
func (l *Logger) CallStart(op string, estimate int) {
	l.Debug("call_start", map[string]interface{}{
		"op":       op,
		"estimate": estimate,
	})
}

// CallComplete logs a successful transport call and its actual usage.
func (l *Logger) CallComplete(op string, duration time.Duration, tokens int) {
	l.Debug("call_complete", map[string]interface{}{
		"op":       op,
		"duration": duration.String(),
		"tokens":   tokens,
	})
}

// CallFailed logs a failed transport call.
func (l *Logger) CallFailed(op string, duration time.Duration, err error) {
	l.Error("call_failed", map[string]interface{}{
		"op":       op,
		"duration": duration.String(),
		"error":    err.Error(),
	})
}

// StreamStopped logs a consumer that stopped reading before the end.
func (l *Logger) StreamStopped(op string, emitted, total int) {
	l.Debug("stream_stopped", map[string]interface{}{
		"op":      op,
		"emitted": emitted,
		"total":   total,
	})
}
