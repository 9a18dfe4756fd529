// Package logger builds the process-wide logrus logger.
//
// Output is JSON so logs can be shipped to ELK, Loki or similar without
// parsing.
package logger

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger writing to out at the named level ("debug",
// "info", "warn", ...).
func New(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(out)
	log.SetLevel(lvl)
	return log, nil
}
