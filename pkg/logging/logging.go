package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	ctrl "sigs.k8s.io/controller-runtime"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy the fmt.Stringer interface.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo // Default to INFO for unknown
	}
}

// ParseLevel converts a textual level (case-insensitive) into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Format selects the handler used for output.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
)

// Init initializes the package logger with the given level, format and output.
// It also routes controller-runtime's logr output through the same handler so
// client and cache internals do not warn about an unset logger.
func Init(level LogLevel, format Format, output io.Writer) {
	opts := &slog.HandlerOptions{
		Level: level.SlogLevel(),
	}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	mu.Lock()
	defaultLogger = slog.New(handler)
	mu.Unlock()

	slog.SetDefault(defaultLogger)
	ctrl.SetLogger(logr.FromSlogHandler(handler))
}

// InitForCLI initializes text logging, the default for interactive use.
func InitForCLI(filterLevel LogLevel, output io.Writer) {
	Init(filterLevel, FormatText, output)
}

// InitForJSON initializes JSON logging, intended for in-cluster deployments.
func InitForJSON(filterLevel LogLevel, output io.Writer) {
	Init(filterLevel, FormatJSON, output)
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func logInternal(level LogLevel, subsystem string, attrs []slog.Attr, err error, messageFmt string, args ...interface{}) {
	l := current()
	// Logging before Init is a no-op so that library code and tests stay quiet.
	if l == nil || !l.Enabled(context.Background(), level.SlogLevel()) {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	slogAttrs := make([]slog.Attr, 0, len(attrs)+2)
	slogAttrs = append(slogAttrs, slog.String("subsystem", subsystem))
	slogAttrs = append(slogAttrs, attrs...)
	if err != nil {
		slogAttrs = append(slogAttrs, slog.String("error", err.Error()))
	}

	l.LogAttrs(context.Background(), level.SlogLevel(), msg, slogAttrs...)
}

// Debug logs a debug message.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, nil, messageFmt, args...)
}

// Info logs an informational message.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, nil, messageFmt, args...)
}

// Warn logs a warning message.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, nil, messageFmt, args...)
}

// Error logs an error message.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, nil, err, messageFmt, args...)
}

// Logger is a subsystem logger carrying a fixed set of structured attributes.
// Every line it writes includes those attributes, which is how the operator
// stamps its name and the identity of the item being processed.
type Logger struct {
	subsystem string
	attrs     []slog.Attr
}

// With returns a Logger for subsystem with the given key/value pairs attached.
func With(subsystem string, keysAndValues ...any) *Logger {
	return &Logger{subsystem: subsystem, attrs: toAttrs(keysAndValues)}
}

// With returns a copy of l with additional key/value pairs attached.
func (l *Logger) With(keysAndValues ...any) *Logger {
	attrs := make([]slog.Attr, 0, len(l.attrs)+len(keysAndValues)/2)
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, toAttrs(keysAndValues)...)
	return &Logger{subsystem: l.subsystem, attrs: attrs}
}

func (l *Logger) Debug(messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, l.subsystem, l.attrs, nil, messageFmt, args...)
}

func (l *Logger) Info(messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, l.subsystem, l.attrs, nil, messageFmt, args...)
}

func (l *Logger) Warn(messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, l.subsystem, l.attrs, nil, messageFmt, args...)
}

func (l *Logger) Error(err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, l.subsystem, l.attrs, err, messageFmt, args...)
}

// toAttrs pairs up keys and values; a trailing key without value is kept
// under "!BADKEY" like slog does.
func toAttrs(keysAndValues []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok || i+1 >= len(keysAndValues) {
			attrs = append(attrs, slog.Any("!BADKEY", keysAndValues[i]))
			continue
		}
		attrs = append(attrs, slog.Any(key, keysAndValues[i+1]))
	}
	return attrs
}
