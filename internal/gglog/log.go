// Package gglog centralizes logrus setup for every daemon and the CLI,
// so log formatting and level parsing (GGL_LOG_LEVEL, spec.md §6) are
// done the same way everywhere instead of each main.go reinventing it.
package gglog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Entry tagged with component, reading its level
// from GGL_LOG_LEVEL (trace|debug|info|warn|error, case-insensitive;
// defaults to info on empty or unparseable values).
func New(component string) *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(levelFromEnv())
	return logger.WithField("component", component)
}

func levelFromEnv() logrus.Level {
	raw := os.Getenv("GGL_LOG_LEVEL")
	if raw == "" {
		return logrus.InfoLevel
	}
	lvl, err := logrus.ParseLevel(raw)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
