// Package logger builds the shared zerolog logger for shelves binaries.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a JSON logger on stdout tagged with the service name, so
// log lines from the API server and the ctl tool stay distinguishable.
func New(serviceName string) zerolog.Logger {
	return zerolog.New(os.Stdout).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}
