// Package logger is a small leveled logger shared by the host-side packages.
// The viewport, index and segment tree packages never log.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the logging level.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Config controls where and how much is logged.
type Config struct {
	Enabled bool
	Level   string
	File    string
	Console bool
}

// Logger writes leveled, timestamped lines.
type Logger struct {
	level   Level
	out     *log.Logger
	closer  io.Closer
	enabled bool
}

var (
	mu     sync.RWMutex
	global = &Logger{level: Info, out: log.New(os.Stderr, "", 0), enabled: true}
)

// New builds a logger from cfg. The caller owns Close.
func New(cfg Config) (*Logger, error) {
	if !cfg.Enabled {
		return &Logger{enabled: false}, nil
	}

	var writers []io.Writer
	var closer io.Closer
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}
	if cfg.Console || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	return &Logger{
		level:   ParseLevel(cfg.Level),
		out:     log.New(io.MultiWriter(writers...), "", 0),
		closer:  closer,
		enabled: true,
	}, nil
}

// NewWriter builds an enabled logger on top of w. Useful in tests.
func NewWriter(w io.Writer, level Level) *Logger {
	return &Logger{level: level, out: log.New(w, "", 0), enabled: true}
}

// Init replaces the process logger.
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	SetDefault(l)
	return nil
}

// SetDefault swaps the process logger, closing the previous file sink if any.
func SetDefault(l *Logger) {
	mu.Lock()
	prev := global
	global = l
	mu.Unlock()
	if prev != nil && prev != l {
		_ = prev.Close()
	}
}

// Close releases the file sink.
func Close() error {
	mu.RLock()
	l := global
	mu.RUnlock()
	return l.Close()
}

// ParseLevel maps a level name to a Level, defaulting to Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// Enabled reports whether a message at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && l.enabled && level >= l.level
}

// Logf writes one line at level.
func (l *Logger) Logf(level Level, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	l.out.Printf("[%s] [%s] %s", ts, level, fmt.Sprintf(format, args...))
}

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

func current() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// IsEnabled reports whether the process logger writes at level.
func IsEnabled(level Level) bool { return current().Enabled(level) }

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) { current().Logf(Debug, format, args...) }

// Infof logs an info message.
func Infof(format string, args ...interface{}) { current().Logf(Info, format, args...) }

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) { current().Logf(Warn, format, args...) }

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) { current().Logf(Error, format, args...) }
