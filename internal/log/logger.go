// Package log configures the process-wide structured logger.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stdout)
	Service string    // optional service name attached to every log entry
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the global logger. Only the first call has an effect.
func Configure(cfg Config) {
	once.Do(func() {
		level := zerolog.InfoLevel
		raw := cfg.Level
		if raw == "" {
			raw = os.Getenv("LOG_LEVEL")
		}
		if raw != "" {
			if parsed, err := zerolog.ParseLevel(raw); err == nil {
				level = parsed
			}
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		writer := cfg.Output
		if writer == nil {
			writer = os.Stdout
		}
		service := cfg.Service
		if service == "" {
			service = "sitecms"
		}

		base = zerolog.New(writer).With().
			Timestamp().
			Str("service", service).
			Logger()
	})
}

// Base returns the configured base logger.
func Base() zerolog.Logger {
	Configure(Config{})
	return base
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}
