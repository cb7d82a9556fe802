// Package logging builds the zerolog logger shared by every command in
// this module — structured JSON to stdout in production, or a
// console-pretty writer when running in a terminal during development.
package logging

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New builds a logger tagged with component, honoring LOG_LEVEL
// ("debug", "info", "warn", "error"; defaults to "info" on an empty or
// unrecognized value).
func New(component string) zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var writer = os.Stdout
	var logger zerolog.Logger
	if isatty.IsTerminal(writer.Fd()) {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"})
	} else {
		logger = zerolog.New(writer)
	}

	return logger.Level(level).With().
		Timestamp().
		Str("component", component).
		Logger()
}
