// Package logger wraps zerolog with fields carried on the request context.
package logger

import (
	"context"
	"io"
	"maps"
	"os"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Options configures New. An empty Format falls back to LOG_FORMAT and then
// to JSON.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Output      io.Writer
	Format      Format
}

type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type scopeKey struct{}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	format := opts.Format
	if format == "" {
		format = Format(strings.ToLower(os.Getenv("LOG_FORMAT")))
	}
	if format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	return &Logger{
		root: zerolog.New(out).Level(opts.Level).With().
			Timestamp().
			Str("service", opts.ServiceName).
			Logger(),
		warnStack: opts.WarnStack,
	}
}

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) scoped(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if scoped, ok := ctx.Value(scopeKey{}).(*zerolog.Logger); ok {
			return scoped
		}
	}
	return &l.root
}

// WithFields returns a context whose entries carry fields. Keys are added in
// sorted order so repeated entries render identically.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	b := l.scoped(ctx).With()
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		b = b.Interface(k, fields[k])
	}
	next := b.Logger()
	return context.WithValue(ctx, scopeKey{}, &next)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.WithFields(ctx, map[string]any{key: value})
}

func (l *Logger) WithRequestID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "request_id", id)
}

func (l *Logger) WithUserID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "user_id", id)
}

func (l *Logger) WithOrderID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "order_id", id)
}

// WithOperation tags entries with the fulfillment operation being run.
func (l *Logger) WithOperation(ctx context.Context, op string) context.Context {
	return l.WithField(ctx, "operation", op)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.scoped(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.scoped(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	e := l.scoped(ctx).Warn()
	if l.warnStack && e.Enabled() {
		e = e.Str("stack", stack())
	}
	e.Msg(msg)
}

// Error always records a stack trace.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	e := l.scoped(ctx).Error()
	if !e.Enabled() {
		return
	}
	if err != nil {
		e = e.Err(err)
	}
	e.Str("stack", stack()).Msg(msg)
}

func stack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
