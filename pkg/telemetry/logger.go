package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a zerolog logger carrying gateway fields such as the component,
// the library module and the operation being dispatched.
type Logger struct {
	zlog zerolog.Logger
}

type loggerKey struct{}

// NewLogger creates a logger writing to cfg.Output, which is "stdout",
// "stderr" or a file path.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	var w io.Writer = os.Stderr
	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
	}
	return NewLoggerWithWriter(w, cfg), nil
}

// NewLoggerWithWriter creates a logger writing to w. cfg.Output is ignored.
func NewLoggerWithWriter(w io.Writer, cfg LoggingConfig) *Logger {
	timeFormat := time.RFC3339
	switch cfg.TimeFormat {
	case "unix":
		timeFormat = zerolog.TimeFormatUnix
	case "unixms":
		timeFormat = zerolog.TimeFormatUnixMs
	}
	zerolog.TimeFieldFormat = timeFormat

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat}
	}

	zctx := zerolog.New(w).With().Timestamp()
	if cfg.EnableCaller {
		zctx = zctx.Caller()
	}
	zlog := zctx.Logger().Level(parseLevel(cfg.Level))

	if cfg.EnableSampling {
		zlog = zlog.Sample(&zerolog.BurstSampler{
			Burst:       uint32(cfg.SamplingInitial),
			Period:      time.Second,
			NextSampler: &zerolog.BasicSampler{N: uint32(cfg.SamplingThereafter)},
		})
	}
	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// WithContext stores the logger in ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}

func (l *Logger) with(fn func(zerolog.Context) zerolog.Context) *Logger {
	return &Logger{zlog: fn(l.zlog.With()).Logger()}
}

// NewComponentLogger returns a child logger tagged with component.
func (l *Logger) NewComponentLogger(component string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("component", component) })
}

// WithField returns a child logger with one more field.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Interface(key, value) })
}

// WithFields returns a child logger with the given fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Fields(fields) })
}

// WithGatewayID tags the logger with a gateway build.
func (l *Logger) WithGatewayID(id string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("gateway_id", id) })
}

// WithOperation tags the logger with an operation name.
func (l *Logger) WithOperation(name string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("operation", name) })
}

// WithModule tags the logger with a library coordinate.
func (l *Logger) WithModule(coordinate string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("module", coordinate) })
}

// WithError attaches err.
func (l *Logger) WithError(err error) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Err(err) })
}

func (l *Logger) Trace(msg string) { l.zlog.Trace().Msg(msg) }
func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zlog.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zlog.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }

func (l *Logger) Debugf(format string, args ...any) { l.zlog.Debug().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.zlog.Warn().Msgf(format, args...) }

// parseLevel maps a configured level name to zerolog, defaulting to info.
func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
