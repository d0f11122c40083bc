// Package logging builds the structured loggers used across the service.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

// New creates a named hclog logger. JSON output is meant for production where
// logs are shipped; text output is meant for terminals.
func New(name, level string, jsonFormat bool, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}
