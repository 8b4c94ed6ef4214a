// Package logging wraps charmbracelet/log for the engine and the CLI.
// Loggers travel in the context; code without one gets the process default.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Общие ключи полей, чтобы логи разных пакетов грепались одинаково.
const (
	FieldPath   = "path"
	FieldURI    = "uri"
	FieldCycle  = "cycle"
	FieldStep   = "step"
	FieldReason = "reason"
	FieldError  = "err"
	FieldEdits  = "edits"
	FieldDur    = "dur"
)

var defaultLogger atomic.Pointer[log.Logger]

// Options configure a logger beyond its level.
type Options struct {
	Level     string
	Format    string // text | json | logfmt
	Timestamp bool
	Prefix    string
}

// New creates a stderr logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"; anything else is info.
func New(level string) *log.Logger {
	return NewWithOptions(os.Stderr, Options{Level: level})
}

func NewWithOptions(w io.Writer, opts Options) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: opts.Timestamp,
		Prefix:          opts.Prefix,
		Formatter:       formatter(opts.Format),
	})
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func formatter(name string) log.Formatter {
	switch strings.ToLower(name) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// ParseLevel is the strict variant used by config validation.
func ParseLevel(level string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel, nil
	case "info", "":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("invalid log level %q (expected: debug|info|warn|error)", level)
	}
}

// ValidFormat reports whether name selects a known formatter.
func ValidFormat(name string) bool {
	switch strings.ToLower(name) {
	case "", "text", "json", "logfmt":
		return true
	}
	return false
}

// Default returns the process-wide logger.
func Default() *log.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := New("info")
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	return defaultLogger.Load()
}

func SetDefault(logger *log.Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

// SetLevel updates the level of the default logger.
func SetLevel(level string) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return
	}
	Default().SetLevel(lvl)
}
