package log

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	cverrors "github.com/YuminosukeSato/cvfold/pkg/errors"
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger writes JSON records to w at the given minimum level.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	zl := zerolog.New(w).
		Level(toZerologLevel(level)).
		With().
		Timestamp().
		Logger()
	return &ZerologLogger{zl: zl}
}

// NewConsoleLogger writes human readable records, used by the CLI.
func NewConsoleLogger(w io.Writer, level Level) *ZerologLogger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	return NewZerologLogger(out, level)
}

// NewNopLogger discards every record.
func NewNopLogger() *ZerologLogger {
	return &ZerologLogger{zl: zerolog.Nop()}
}

func (z *ZerologLogger) Debug(msg string, fields ...any) {
	z.zl.Debug().Fields(fields).Msg(msg)
}

func (z *ZerologLogger) Info(msg string, fields ...any) {
	z.zl.Info().Fields(fields).Msg(msg)
}

func (z *ZerologLogger) Warn(msg string, fields ...any) {
	z.zl.Warn().Fields(fields).Msg(msg)
}

func (z *ZerologLogger) Error(msg string, fields ...any) {
	ev := z.zl.Error()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = ev.Err(err)
			var detail zerolog.LogObjectMarshaler
			if errors.As(err, &detail) {
				ev = ev.Object("error_detail", detail)
			}
			fields = fields[1:]
		}
	}
	ev.Fields(fields).Msg(msg)
}

func (z *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{zl: z.zl.With().Fields(fields).Logger()}
}

func (z *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return z.zl.GetLevel() <= toZerologLevel(level)
}

// Zerolog exposes the underlying logger.
func (z *ZerologLogger) Zerolog() *zerolog.Logger {
	return &z.zl
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewZerologLogger(os.Stderr, LevelInfo)
)

// GetLogger returns the package default logger.
func GetLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// GetLoggerWithName returns the default logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// SetLogger replaces the package default logger and routes library
// warnings (pkg/errors.Warn) through it.
func SetLogger(l Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()

	if zl, ok := l.(*ZerologLogger); ok {
		cverrors.SetZerologWarnFunc(func(w error) {
			ev := zl.zl.Warn()
			if m, ok := w.(zerolog.LogObjectMarshaler); ok {
				ev = ev.EmbedObject(m)
			}
			ev.Msg(w.Error())
		})
		return
	}
	cverrors.SetZerologWarnFunc(func(w error) {
		l.Warn(w.Error())
	})
}

// ZerologProvider implements LoggerProvider.
type ZerologProvider struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	logger *ZerologLogger
}

// NewZerologProvider creates a provider writing to w.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	return &ZerologProvider{w: w, level: level, logger: NewZerologLogger(w, level)}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logger
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
	p.logger = NewZerologLogger(p.w, level)
}
