// Package logger builds the structured loggers used by the ingestion,
// routing, and execution subsystems. Every Logger is pre-tagged with the
// component that owns it, so log lines are attributable without each call
// site repeating the subsystem name.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Config narrows logging to the knobs this module actually exposes: a
// level, a text-or-JSON switch, and an optional file the stream is mirrored
// to alongside stdout.
type Config struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

// Logger is a logrus entry carrying the owning component as a permanent
// field. All of logrus's leveled and field-chaining methods are available
// directly.
type Logger struct {
	*logrus.Entry
}

// New builds a Logger for one component. An unparseable level falls back to
// info; an unopenable file falls back to stdout-only, with a warning on the
// logger itself.
func New(component string, cfg Config) *Logger {
	base := logrus.New()

	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		base.SetLevel(level)
	}

	if cfg.JSON {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out := io.Writer(os.Stdout)
	if cfg.File != "" {
		if f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = io.MultiWriter(os.Stdout, f)
		} else {
			base.WithError(err).Warn("log file unavailable, writing to stdout only")
		}
	}
	base.SetOutput(out)

	return &Logger{Entry: base.WithField("component", component)}
}

// NewDefault builds an info-level text Logger for a component.
func NewDefault(component string) *Logger {
	return New(component, Config{Level: "info"})
}
