// Package logger provides leveled logging for reposcan components
package logger

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

// Level represents the logging level
type Level int

// LoggerInterface is what every reposcan component accepts for logging
type LoggerInterface interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
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

// ParseLevel converts a configuration string into a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger writes leveled, optionally timestamped lines to its writers
type Logger struct {
	mu        *sync.Mutex
	level     Level
	writers   []io.Writer
	prefix    string
	debugMode bool
	timestamp bool
}

// Config holds logger configuration
type Config struct {
	Level     Level
	LogFile   string
	Debug     bool
	Timestamp bool
	Prefix    string
}

// New creates a new logger with the given configuration. Console output goes
// to stderr so that JSON printed on stdout stays machine-readable.
func New(config Config) (*Logger, error) {
	writers := []io.Writer{}

	// Don't write to the console during tests
	if !testing.Testing() {
		writers = append(writers, os.Stderr)
	}

	level := config.Level
	if config.Debug {
		level = LevelDebug
	}

	logger := &Logger{
		mu:        &sync.Mutex{},
		level:     level,
		prefix:    config.Prefix,
		debugMode: config.Debug,
		timestamp: config.Timestamp,
		writers:   writers,
	}

	if config.LogFile != "" {
		logDir := filepath.Dir(config.LogFile)
		if err := os.MkdirAll(logDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}

		// #nosec G304 - log file path comes from the user's own configuration
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}

		logger.writers = append(logger.writers, file)
	}

	return logger, nil
}

// NewDefault creates a logger with default settings
func NewDefault() *Logger {
	logger, _ := New(Config{ //nolint:errcheck // no log file, cannot fail
		Level:     LevelInfo,
		Timestamp: true,
		Prefix:    "reposcan",
	})
	return logger
}

// NewWithWriter creates a logger that writes only to w
func NewWithWriter(w io.Writer, level Level) *Logger {
	return &Logger{
		mu:      &sync.Mutex{},
		level:   level,
		writers: []io.Writer{w},
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetDebug enables or disables debug mode
func (l *Logger) SetDebug(debug bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugMode = debug
	if debug {
		l.level = LevelDebug
	}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	var parts []string

	if l.timestamp {
		parts = append(parts, time.Now().Format("2006-01-02 15:04:05"))
	}

	parts = append(parts, fmt.Sprintf("[%s]", level.String()))

	if l.prefix != "" {
		parts = append(parts, fmt.Sprintf("[%s]", l.prefix))
	}

	parts = append(parts, Redact(fmt.Sprintf(format, args...)))

	logLine := strings.Join(parts, " ") + "\n"

	for _, writer := range l.writers {
		_, _ = writer.Write([]byte(logLine)) //nolint:errcheck // logging output errors are not critical
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// WithPrefix creates a logger sharing this logger's writers with an extra prefix
func (l *Logger) WithPrefix(prefix string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	newLogger := *l
	if l.prefix != "" {
		newLogger.prefix = l.prefix + ":" + prefix
	} else {
		newLogger.prefix = prefix
	}
	return &newLogger
}

var credentialURL = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s/@]+@[^\s]+`)

// Redact masks the userinfo part of any URL in s, so embedded access tokens
// never reach a log line or an error message.
func Redact(s string) string {
	if !strings.Contains(s, "@") {
		return s
	}
	return credentialURL.ReplaceAllStringFunc(s, func(raw string) string {
		u, err := url.Parse(raw)
		if err != nil || u.User == nil {
			return raw
		}
		u.User = url.User("***")
		return u.String()
	})
}

// Component returns l when set, otherwise the global logger scoped by prefix
func Component(l LoggerInterface, prefix string) LoggerInterface {
	if l != nil {
		return l
	}
	return GetGlobalLogger().WithPrefix(prefix)
}

var (
	globalMu     sync.RWMutex
	globalLogger = NewDefault()
)

// Debug logs a debug message using the global logger
func Debug(format string, args ...interface{}) {
	GetGlobalLogger().Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	GetGlobalLogger().Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	GetGlobalLogger().Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	GetGlobalLogger().Error(format, args...)
}

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}
