// Package log provides the process-wide logger, backed by logrus.
package log

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"firestige.xyz/dissector/internal/config"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

const (
	DefaultPattern = "%time [%level] %field %msg"
	DefaultTime    = "2006-01-02 15:04:05.000"
)

var (
	mu     sync.RWMutex
	logger Logger = defaultLogger()
)

// GetLogger returns the process-wide logger. Before Init it writes
// info and above to stderr.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger replaces the process-wide logger.
func SetLogger(l Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Init builds the process-wide logger from configuration.
func Init(cfg config.LogConfig) error {
	l, err := build(cfg)
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

func build(cfg config.LogConfig) (Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	timeLayout := cfg.Time
	if timeLayout == "" {
		timeLayout = DefaultTime
	}

	out := NewMultiWriter().Add(os.Stderr)
	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return nil, fmt.Errorf("file appender requires 'path'")
		}
		out.AddFileAppender(FileAppenderOpt{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		})
	}

	l := logrus.New()
	l.SetFormatter(&formatter{pattern: pattern, time: timeLayout})
	l.SetLevel(level)
	l.SetOutput(out)
	return New(l), nil
}

func parseLevel(s string) (logrus.Level, error) {
	if s == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level: %w", err)
	}
	return level, nil
}

func defaultLogger() Logger {
	l := logrus.New()
	l.SetFormatter(&formatter{pattern: DefaultPattern, time: DefaultTime})
	l.SetLevel(logrus.InfoLevel)
	l.SetOutput(os.Stderr)
	return New(l)
}
