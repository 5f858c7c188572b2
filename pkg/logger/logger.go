// Package logger builds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const service = "grc-gateway"

func New(env string) zerolog.Logger {
	return NewTo(os.Stdout, env)
}

// NewTo writes JSON lines to w: debug level in dev, info elsewhere.
func NewTo(w io.Writer, env string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	l := zerolog.New(w).With().Timestamp().Str("service", service).Str("env", env).Logger()
	if env == "dev" {
		l = l.Level(zerolog.DebugLevel)
	} else {
		l = l.Level(zerolog.InfoLevel)
	}
	return l
}
