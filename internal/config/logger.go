package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger. level is parsed
// case-insensitively; an unrecognized value falls back to info. format
// "console" renders human-readable colorized output; anything else
// renders newline-delimited JSON, the default for production.
func InitLogger(level, format string) {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output = os.Stdout
	var writer zerolog.ConsoleWriter
	useConsole := format == "console"
	if useConsole {
		writer = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	if useConsole {
		log.Logger = zerolog.New(writer).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	log.Info().Str("level", logLevel.String()).Str("format", format).Msg("logger initialized")
}

// NewLogger returns a logger scoped to a named component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// NewAgentLogger returns a logger scoped to a specific sensor agent
// instance, carrying its id and sensor type on every line.
func NewAgentLogger(sensorID, sensorType string) zerolog.Logger {
	return log.With().
		Str("component", "agent").
		Str("sensor_id", sensorID).
		Str("sensor_type", sensorType).
		Logger()
}

// NewBusLogger returns a logger scoped to the broker session.
func NewBusLogger(sensorID string) zerolog.Logger {
	return log.With().
		Str("component", "bus").
		Str("sensor_id", sensorID).
		Logger()
}
