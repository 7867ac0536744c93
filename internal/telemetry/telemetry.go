// Package telemetry builds the zerolog loggers shared by flow components.
package telemetry

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config configures a logger
type Config struct {
	// Level is one of trace, debug, info, warn, error, disabled. Empty means info.
	Level string

	// Pretty switches to human readable console output
	Pretty bool

	// Output defaults to stderr
	Output io.Writer
}

// New creates a logger from the configuration
func New(config Config) zerolog.Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	if config.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// WithModule tags every entry of the logger with a module name
func WithModule(logger zerolog.Logger, module string) zerolog.Logger {
	return logger.With().Str("module", module).Logger()
}
