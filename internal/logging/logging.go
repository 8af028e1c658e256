// Package logging builds the zerolog logger shared by the hmsctl
// commands and the core services.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup returns the process logger for the requested format: "text"
// renders a human-readable console stream, anything else emits
// structured JSON. Both write to stderr so command output on stdout
// stays machine-readable.
func Setup(format string) zerolog.Logger {
	var out io.Writer = os.Stderr
	if format == "text" {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
