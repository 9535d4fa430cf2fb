// file: logger/logger.go

package logger

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Log is the application-wide structured logger.
// It is usable before Init is called; Init only adjusts formatting and level.
var Log = logrus.New()

// Init configures the logger for JSON output on stdout.
// The level is read from LOG_LEVEL and defaults to info.
func Init() {
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	level, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)
}
