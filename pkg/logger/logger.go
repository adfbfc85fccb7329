// Package logger provides structured logging for the application.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Output string // stdout, stderr
	Name   string // component name attached to every entry
}

// Logger wraps a logrus entry with a component name.
type Logger struct {
	entry *logrus.Entry
}

// New builds a logger from the provided configuration.
func New(cfg LoggingConfig) *Logger {
	base := logrus.New()
	base.SetOutput(output(cfg.Output))
	base.SetLevel(level(cfg.Level))

	switch strings.ToLower(cfg.Format) {
	case "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		base.SetFormatter(&logrus.JSONFormatter{})
	}

	entry := logrus.NewEntry(base)
	if cfg.Name != "" {
		entry = entry.WithField("component", cfg.Name)
	}
	return &Logger{entry: entry}
}

// NewDefault returns an info-level JSON logger for the named component.
func NewDefault(name string) *Logger {
	return New(LoggingConfig{Level: "info", Format: "json", Output: "stdout", Name: name})
}

func level(s string) logrus.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func output(s string) io.Writer {
	if strings.ToLower(s) == "stderr" {
		return os.Stderr
	}
	return os.Stdout
}

// WithField returns a logger with the field attached.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields returns a logger with all fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

// WithError returns a logger with the error attached.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *Logger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *Logger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *Logger) Error(args ...interface{}) { l.entry.Error(args...) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
