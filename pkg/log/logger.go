package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Logger = zerolog.Logger

type Fields map[string]interface{}

func New(env, service string) Logger {
	return NewWithWriter(env, service, os.Stdout)
}

func NewWithWriter(env, service string, w io.Writer) Logger {
	level := zerolog.InfoLevel
	out := w
	if env == "local" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: w}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", service).Logger().Level(level)
	return log.Logger
}

// Nop returns a logger that discards everything.
func Nop() Logger { return zerolog.Nop() }

func With(logger Logger, fields Fields) Logger {
	event := logger
	for k, v := range fields {
		event = event.With().Interface(k, v).Logger()
	}
	return event
}
