package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig holds logger configuration.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Output: os.Stderr}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg LogConfig) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a zerolog logger derived from the global one.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

type zerologLogger struct {
	l zerolog.Logger
}

// NewZerolog adapts a zerolog logger to Logger.
func NewZerolog(l zerolog.Logger) Logger { return zerologLogger{l: l} }

func (z zerologLogger) Debug(msg string, fields ...Field) { emit(z.l.Debug(), msg, fields) }
func (z zerologLogger) Info(msg string, fields ...Field)  { emit(z.l.Info(), msg, fields) }
func (z zerologLogger) Warn(msg string, fields ...Field)  { emit(z.l.Warn(), msg, fields) }
func (z zerologLogger) Error(msg string, fields ...Field) { emit(z.l.Error(), msg, fields) }

func (z zerologLogger) With(fields ...Field) Logger {
	ctx := z.l.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key(), f.Value())
	}
	return zerologLogger{l: ctx.Logger()}
}

func emit(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value().(type) {
		case string:
			e = e.Str(f.Key(), v)
		case int:
			e = e.Int(f.Key(), v)
		case int64:
			e = e.Int64(f.Key(), v)
		case bool:
			e = e.Bool(f.Key(), v)
		case time.Duration:
			e = e.Dur(f.Key(), v)
		case error:
			e = e.AnErr(f.Key(), v)
		default:
			e = e.Interface(f.Key(), v)
		}
	}
	e.Msg(msg)
}
