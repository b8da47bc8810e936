// Package logger is a context-carrying wrapper around zerolog. A nil *Logger discards everything.
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/learnhub-backend/pkg/env"
)

// FormatEnv switches output to zerolog's console writer when set to "console".
const FormatEnv = "LEARNHUB_LOG_FORMAT"

type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack attaches a stack trace to warnings as well as errors.
	WarnStack bool
	Output    io.Writer
}

type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type scopeKey struct{}

func New(opts Options) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	if strings.EqualFold(env.Get(FormatEnv, "json"), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	root := zerolog.New(out).Level(opts.Level).With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()
	return &Logger{root: root, warnStack: opts.WarnStack}
}

// ParseLevel maps a config string onto a level, falling back to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// scoped returns the logger stored in ctx by the With* helpers, or the root logger.
func (l *Logger) scoped(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return l.root
	}
	if scoped, ok := ctx.Value(scopeKey{}).(zerolog.Logger); ok {
		return scoped
	}
	return l.root
}

func (l *Logger) extend(ctx context.Context, add func(zerolog.Context) zerolog.Context) context.Context {
	if l == nil {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, add(l.scoped(ctx).With()).Logger())
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.extend(ctx, func(c zerolog.Context) zerolog.Context { return c.Interface(key, value) })
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return l.extend(ctx, func(c zerolog.Context) zerolog.Context { return c.Fields(fields) })
}

func (l *Logger) WithRequestID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "request_id", id)
}

func (l *Logger) WithUserID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "user_id", id)
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.WithField(ctx, "actor_role", role)
}

func (l *Logger) WithCourseID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "course_id", id)
}

func (l *Logger) WithPaymentID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "payment_id", id)
}

func (l *Logger) Debug(ctx context.Context, msg string) { l.emit(ctx, zerolog.DebugLevel, msg, nil) }

func (l *Logger) Info(ctx context.Context, msg string) { l.emit(ctx, zerolog.InfoLevel, msg, nil) }

func (l *Logger) Warn(ctx context.Context, msg string) { l.emit(ctx, zerolog.WarnLevel, msg, nil) }

// Error always records a stack trace alongside err.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	l.emit(ctx, zerolog.ErrorLevel, msg, err)
}

func (l *Logger) emit(ctx context.Context, level zerolog.Level, msg string, err error) {
	if l == nil {
		return
	}
	scoped := l.scoped(ctx)
	event := scoped.WithLevel(level)
	if event == nil {
		return
	}
	if err != nil {
		event = event.Err(err)
	}
	if level >= zerolog.ErrorLevel || (level == zerolog.WarnLevel && l.warnStack) {
		event = event.Str("stack", strings.TrimSpace(string(debug.Stack())))
	}
	event.Msg(msg)
}
