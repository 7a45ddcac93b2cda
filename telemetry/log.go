// Package telemetry holds the process-wide structured logger.
package telemetry

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide structured logger. Every package that needs to
// log reaches for this instance and tags its entries with a "component"
// field rather than constructing its own logger.
var Logger = &logrus.Logger{
	Out:          os.Stderr,
	Formatter:    &logrus.TextFormatter{FullTimestamp: true},
	Hooks:        make(logrus.LevelHooks),
	Level:        logrus.InfoLevel,
	ExitFunc:     os.Exit,
}

// Init points the logger at a file instead of stderr. Servers call this once
// at startup; tests and short-lived tools can leave the default in place.
func Init(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	Logger.Out = f
	return nil
}

// With returns an entry pre-tagged with the given component name under the
// "component" field, via Logger.WithFields.
func With(component string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{"component": component})
}
