// Package logging wires zerolog the way the teacher's cmd/cryptorun/main.go
// does: a console writer with RFC3339 timestamps for interactive use, one
// structured logger injected into each component rather than a package-level
// global reached for ad hoc.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process-wide base logger. Call once at startup; pass the
// result (or a `.With()` child of it) into component constructors.
func New(level string, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	if out == nil {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the owning component name,
// mirroring the "component" field convention used throughout the teacher's
// job/run logging.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
