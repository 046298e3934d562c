package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// LogConfig describes logger construction.
type LogConfig struct {
	Level  string
	Pretty bool
}

func loadLogConfig() LogConfig {
	pretty, _ := parseBoolEnv("LOG_PRETTY", false)
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Pretty: pretty,
	}
}

// NewLogger builds the root zerolog logger; components derive child
// loggers from it with their own fields.
func NewLogger(cfg LogConfig) (zerolog.Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger(), nil
}

func parseLogLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
}
