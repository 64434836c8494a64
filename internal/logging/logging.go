// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var base = logrus.StandardLogger()

// SetupBaseLogger installs the default formatter and level before any
// configuration has been loaded, so early startup errors are still legible.
func SetupBaseLogger() {
	if isTTY(os.Stderr) {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{})
	}
	base.SetOutput(os.Stderr)
	base.SetLevel(logrus.InfoLevel)
}

// ConfigureLogOutput makes the logger write to both a rotating file and
// stderr when logToFile is true, otherwise it keeps writing to stderr only.
func ConfigureLogOutput(logToFile bool, path string) error {
	if !logToFile {
		return nil
	}
	if path == "" {
		path = "relaymux.log"
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	base.SetOutput(io.MultiWriter(rotator, os.Stderr))
	return nil
}

// SetDebug toggles debug-level logging.
func SetDebug(debug bool) {
	if debug {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// L returns the shared logger instance.
func L() *logrus.Logger { return base }

func Debugf(format string, args ...any) { base.Debugf(format, args...) }
func Infof(format string, args ...any)  { base.Infof(format, args...) }
func Warnf(format string, args ...any)  { base.Warnf(format, args...) }
func Errorf(format string, args ...any) { base.Errorf(format, args...) }
func Fatalf(format string, args ...any) { base.Fatalf(format, args...) }

// WithFields returns an entry pre-populated with structured fields, the way
// request-scoped log lines (provider id, session id, attempt number) should
// be emitted throughout the forwarding pipeline.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return base.WithFields(fields)
}
