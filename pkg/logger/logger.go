package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"igmirror/pkg/config"
)

// Logger defines the interface for logging operations
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	DebugWithFields(msg string, fields map[string]interface{})
	InfoWithFields(msg string, fields map[string]interface{})
	WarnWithFields(msg string, fields map[string]interface{})
	ErrorWithFields(msg string, fields map[string]interface{})
}

// zerologLogger implements the Logger interface using zerolog
type zerologLogger struct {
	logger zerolog.Logger
}

var (
	defaultLogger Logger = newZerolog(zerolog.InfoLevel, os.Stdout)
	defaultMu     sync.RWMutex
)

// New creates a new Logger instance based on the provided configuration
func New(cfg *config.LoggingConfig) (Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = f
	}

	return newZerolog(level, output), nil
}

func newZerolog(level zerolog.Level, output io.Writer) Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	l := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &zerologLogger{logger: l}
}

// GetLogger returns the process-wide default logger
func GetLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetLogger replaces the process-wide default logger
func SetLogger(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

func parseLogLevel(level string) (zerolog.Level, error) {
	switch level {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown level: %q", level)
	}
}

func (z *zerologLogger) Debug(msg string) { z.logger.Debug().Msg(msg) }
func (z *zerologLogger) Info(msg string)  { z.logger.Info().Msg(msg) }
func (z *zerologLogger) Warn(msg string)  { z.logger.Warn().Msg(msg) }
func (z *zerologLogger) Error(msg string) { z.logger.Error().Msg(msg) }
func (z *zerologLogger) Fatal(msg string) { z.logger.Fatal().Msg(msg) }

func (z *zerologLogger) WithField(key string, value interface{}) Logger {
	return &zerologLogger{logger: z.logger.With().Interface(key, value).Logger()}
}

func (z *zerologLogger) WithFields(fields map[string]interface{}) Logger {
	ctx := z.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &zerologLogger{logger: ctx.Logger()}
}

func (z *zerologLogger) WithError(err error) Logger {
	return &zerologLogger{logger: z.logger.With().Err(err).Logger()}
}

func (z *zerologLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	z.logEvent(z.logger.Debug(), msg, fields)
}

func (z *zerologLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	z.logEvent(z.logger.Info(), msg, fields)
}

func (z *zerologLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	z.logEvent(z.logger.Warn(), msg, fields)
}

func (z *zerologLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	z.logEvent(z.logger.Error(), msg, fields)
}

func (z *zerologLogger) logEvent(event *zerolog.Event, msg string, fields map[string]interface{}) {
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
