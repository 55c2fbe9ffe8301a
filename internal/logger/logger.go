// Package logger provides structured logging for the treeaudit service
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is attached to every log line
const ServiceName = "treeaudit"

// Logger wraps zerolog with treeaudit-specific helpers
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", ServiceName).
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Zerolog returns the underlying zerolog logger, for packages that take one
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// Info starts an info event
func (l *Logger) Info() *zerolog.Event { return l.zlog.Info() }

// Debug starts a debug event
func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }

// Warn starts a warning event
func (l *Logger) Warn() *zerolog.Event { return l.zlog.Warn() }

// Error starts an error event
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// Fatal starts a fatal event; the process exits after Msg
func (l *Logger) Fatal() *zerolog.Event { return l.zlog.Fatal() }

// Component returns a sub-logger tagged with a component name
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// LogGrpcRequest logs a completed gRPC request
func (l *Logger) LogGrpcRequest(method string, duration time.Duration, err error) {
	event := l.zlog.Info()
	if err != nil {
		event = l.zlog.Error().Err(err)
	}
	event.
		Str("component", "grpc").
		Str("method", method).
		Dur("duration_ms", duration).
		Msg("gRPC request completed")
}

// LogStoreOperation logs a revision store operation
func (l *Logger) LogStoreOperation(operation string, version int, duration time.Duration, err error) {
	event := l.zlog.Debug()
	if err != nil {
		event = l.zlog.Error().Err(err)
	}
	event.
		Str("component", "store").
		Str("operation", operation).
		Int("version", version).
		Dur("duration_ms", duration).
		Msg("Store operation completed")
}

// LogServerStart logs server startup
func (l *Logger) LogServerStart(port int, dataPath string) {
	l.zlog.Info().
		Str("event", "server_start").
		Int("port", port).
		Str("data", dataPath).
		Msg("treeaudit server starting")
}

// LogServerReady logs when the server accepts connections
func (l *Logger) LogServerReady(port int) {
	l.zlog.Info().
		Str("event", "server_ready").
		Int("port", port).
		Msg("treeaudit server ready to accept connections")
}

// LogServerShutdown logs server shutdown
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("treeaudit server shutting down")
}

var globalLogger *Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = globalLogger.zlog
}

// GetGlobalLogger returns the global logger, initializing defaults if unset
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		InitGlobalLogger(Config{Level: "info", Pretty: true})
	}
	return globalLogger
}
