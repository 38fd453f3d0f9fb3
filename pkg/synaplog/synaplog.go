// Package synaplog is the engine's logging wrapper around zerolog. Components
// take a zerolog.Logger in their constructor (see internal/keyspace,
// internal/wal, internal/replication) rather than calling a global logger
// directly, so they stay testable with a buffered logger; this package only
// owns process-wide setup for cmd/synap.
package synaplog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger, installed by Init and handed out to
// components via WithComponent.
var Logger zerolog.Logger

// Level is one of the configurable zerolog levels.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls the process-wide logger created by Init.
type Config struct {
	Output     io.Writer
	Level      Level
	JSONOutput bool
}

// Init installs the process-wide logger. Called once from cmd/synap's root
// command before any component is constructed.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagged with the owning component, the
// way every internal/* constructor obtains its logger.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

func init() {
	// Safe default so components constructed by tests without calling Init
	// still log somewhere instead of panicking on a zero-value Logger.
	Init(Config{Level: InfoLevel})
}
