// Package forgelog constructs the *logrus.Entry threaded through forge's
// builder and ejector for progress reporting.
//
// It mirrors lazydocker's pkg/log/log.go constructor (development vs.
// production formatter, level from $LOG_LEVEL), but drops the file-backed
// development sink in favor of stderr: forge has no persistent app config
// directory to put a log file in, and unlike a TUI, forge's output doesn't
// need to avoid colliding with an interactive screen.
package forgelog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a *logrus.Entry for component, formatted for humans when dev
// is true, as JSON to stderr otherwise. Level is read from $LOG_LEVEL,
// defaulting to info.
func New(component string, dev bool) *logrus.Entry {
	log := logrus.New()
	log.Out = os.Stderr
	log.SetLevel(levelFromEnv())

	if dev {
		log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	} else {
		log.Formatter = &logrus.JSONFormatter{}
	}

	return log.WithField("component", component)
}

func levelFromEnv() logrus.Level {
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logrus.InfoLevel
	}

	return level
}
