// Package logging configures the standard logrus logger for the relay.
package logging

import (
	"io"
	"os"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	OutputConsole = "console"
	OutputFile    = "file"
	OutputBoth    = "both"
)

// Setup applies cfg to the standard logger and returns the rotating file writer,
// if any, so the caller can close it on exit.
func Setup(cfg Config) io.Closer {
	return Configure(logger.StandardLogger(), cfg)
}

// Configure applies cfg to l.
func Configure(l *logger.Logger, cfg Config) io.Closer {
	level, err := logger.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logger.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logger.JSONFormatter{})
	} else {
		l.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
	}

	var rotator *lumberjack.Logger
	output := strings.ToLower(cfg.Output)
	if output == OutputFile || output == OutputBoth {
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}

	switch {
	case rotator != nil && output == OutputFile:
		l.SetOutput(rotator)
	case rotator != nil:
		l.SetOutput(io.MultiWriter(os.Stdout, rotator))
	default:
		l.SetOutput(os.Stdout)
	}

	if rotator == nil {
		return nopCloser{}
	}
	return rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
