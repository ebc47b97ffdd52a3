// Package logging configures structured logging for the catalog packages
// using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. Loggers created by NewLogger
// afterwards inherit its output and level.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level.zerolog())

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel validates a level name from a flag or config file. The empty
// string yields LevelInfo.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return LevelInfo, nil
	case "debug", "trace":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "disabled", "off", "none":
		return LevelDisabled, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// zerolog converts the level; unknown values fall back to info.
func (l LogLevel) zerolog() zerolog.Level {
	switch strings.ToLower(string(l)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: query cache internals
//   - Fetch issued / attached to in-flight fetch
//   - Superseded outcomes discarded
//   - Conditional requests and 304 reuse
//
// Info: normal operation events
//   - Server startup/shutdown
//   - Export progress
//   - Successful catalog requests
//
// Warn: conditions the caller recovers from
//   - Retry attempts
//   - Rate limit backoff windows
//   - Failed fetches (the entry keeps its previous payload)
//   - Tracker errors (fail open)
//
// Error: conditions requiring attention
//   - Requests failed after retries
//   - Configuration errors
//
// Context Fields:
//   - key: query key of a cache entry
//   - seq: fetch sequence number
//   - endpoint: catalog endpoint (characters, character)
//   - status_code: HTTP status code
//   - error_class: client, server, rate_limit, network, decode
//   - attempt: retry attempt number
//   - pages: page count of a result set
//   - duration: request or fetch duration
