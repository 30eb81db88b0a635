package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// newLogger builds the CLI logger. Logs always go to w (stderr) so stdout
// stays clean for JSON and SARIF output.
func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	switch strings.ToLower(format) {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format: %s", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// parseLevel supports string-only levels
func parseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level: %s", s)
}

// engineLogger adapts a zerolog logger to engine.DebugLogger.
type engineLogger struct {
	log zerolog.Logger
}

func (l engineLogger) Log(format string, args ...interface{}) {
	l.log.Debug().Str("component", "engine").Msgf(format, args...)
}
