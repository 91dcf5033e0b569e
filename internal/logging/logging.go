package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects the sink format and level.
type Options struct {
	Level  string
	Format string
	Out    io.Writer
}

// New builds a logger. Format "json" writes one JSON object per line; anything else
// uses the console writer.
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.WarnLevel
	if strings.TrimSpace(opts.Level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q", opts.Level)
		}
		level = parsed
	}
	var logger zerolog.Logger
	switch strings.ToLower(opts.Format) {
	case "json":
		zerolog.TimeFieldFormat = time.RFC3339
		logger = zerolog.New(opts.Out).With().Timestamp().Logger()
	case "", "console", "text":
		output := zerolog.ConsoleWriter{Out: opts.Out, TimeFormat: time.RFC3339}
		logger = zerolog.New(output).With().Timestamp().Logger()
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", opts.Format)
	}
	logger = logger.Level(level)
	log.Logger = logger
	return logger, nil
}
