// Package telemetry builds the process logger and periodically samples
// the cache's cumulative counters into delta-since-last-tick log events.
package telemetry

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog.Logger from a level name ("debug", "info",
// "warn", "error") and a format ("console" or "json"). It is built once
// at startup and threaded explicitly into every component that logs;
// there is no package-level global logger.
func NewLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
