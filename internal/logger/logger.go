package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "02-01-2006 15:04:05"

// Log field names shared by every component.
const (
	FieldContext     = "context"
	FieldServiceName = "service_name"
	FieldSeverity    = "severity"
)

// ContextNotifyConsumer tags every event emitted by the queue consumer.
const ContextNotifyConsumer = "notify_consumer"

// zerolog keeps the field layout in globals, so it applies to every logger in
// the process, including ones built with zerolog.New.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.MessageFieldName = "msg"
	zerolog.DurationFieldUnit = time.Millisecond
}

// New constructs a zerolog logger according to the runtime environment.
// Development environments receive human readable console logs while other
// environments emit JSON with time, level, msg and service_name keys.
func New(env, level, serviceName string, writers ...io.Writer) (*zerolog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)

	var output io.Writer
	if len(writers) > 0 {
		output = io.MultiWriter(writers...)
	} else if strings.EqualFold(env, "development") || strings.EqualFold(env, "dev") {
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: consoleTimeFormat}
		output = cw
	} else {
		output = os.Stdout
	}

	ctx := zerolog.New(output).With().Timestamp()
	if serviceName != "" {
		ctx = ctx.Str(FieldServiceName, serviceName)
	}
	logger := ctx.Logger().Level(lvl)
	return &logger, nil
}

// Critical starts an error level event marked severity=critical. zerolog has
// no critical level, so the log sink keys alerts off the severity field.
func Critical(l *zerolog.Logger) *zerolog.Event {
	return l.Error().Str(FieldSeverity, "critical")
}

func parseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		level = zerolog.InfoLevel.String()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, err
	}
	return lvl, nil
}
