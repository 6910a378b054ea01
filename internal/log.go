package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// levelTrace sits below slog's Debug.
const levelTrace = slog.LevelDebug - 4

// Logger provides leveled logging on top of a tint slog handler
type Logger struct {
	level LogLevel
	sl    *slog.Logger
}

// NewLogger creates a new logger with the specified level writing to stderr
func NewLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo creates a logger writing to w
func NewLoggerTo(w io.Writer, level LogLevel) *Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level.slogLevel(),
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(w),
	})
	return &Logger{level: level, sl: slog.New(handler)}
}

// NewDefaultLogger creates a logger based on LOG_LEVEL environment variable
func NewDefaultLogger() *Logger {
	return NewLogger(ParseLogLevel(os.Getenv("LOG_LEVEL")))
}

// ParseLogLevel maps ERROR/WARN/INFO/DEBUG/TRACE to a level; anything else is INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError
	case "WARN":
		return LogLevelWarn
	case "DEBUG":
		return LogLevelDebug
	case "TRACE":
		return LogLevelTrace
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelTrace:
		return levelTrace
	default:
		return slog.LevelInfo
	}
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LogLevelError, slog.LevelError, format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LogLevelWarn, slog.LevelWarn, format, args...)
}

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LogLevelInfo, slog.LevelInfo, format, args...)
}

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LogLevelDebug, slog.LevelDebug, format, args...)
}

// Trace logs trace messages
func (l *Logger) Trace(format string, args ...interface{}) {
	l.log(LogLevelTrace, levelTrace, format, args...)
}

func (l *Logger) log(min LogLevel, level slog.Level, format string, args ...interface{}) {
	if l == nil || l.level < min {
		return
	}
	l.sl.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

// Slog exposes the underlying structured logger, e.g. for HTTP middleware
func (l *Logger) Slog() *slog.Logger {
	return l.sl
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Global logger instance
var DefaultLogger = NewDefaultLogger()
