package trafgen

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// LogCfg selects the level and output format of the module's log records
type LogCfg struct {
	Level     string `json:"level" yaml:"level"`         // "debug", "info", "warn", "error"
	Formatter string `json:"formatter" yaml:"formatter"` // "text" or "json"
}

// ConfigureLogging applies lc to the standard logrus logger, which is the
// logger every component derives its entry from
func ConfigureLogging(lc LogCfg) error {
	level := logrus.InfoLevel
	if lc.Level != "" {
		var err error
		level, err = logrus.ParseLevel(lc.Level)
		if err != nil {
			return err
		}
	}
	logrus.SetLevel(level)

	switch lc.Formatter {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		return fmt.Errorf("unsupported logging formatter: %q", lc.Formatter)
	}
	logrus.Debugf("using %q logging formatter at level %s", lc.Formatter, level)
	return nil
}

// componentLogger returns the entry a component uses until SetLogger replaces it
func componentLogger(kind, name string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"component": kind,
		"name":      name,
	})
}
