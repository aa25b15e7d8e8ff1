// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

const (
	LevelTrace slog.Level = -8
	LevelDebug            = slog.LevelDebug
	LevelInfo             = slog.LevelInfo
	LevelWarn             = slog.LevelWarn
	LevelError            = slog.LevelError
)

// Logger is the structured logger used throughout the platform.
type Logger interface {
	// With returns a new Logger that has this logger's attributes plus the given attributes.
	With(ctx ...any) Logger

	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)

	// Write logs a message at the specified level.
	Write(level slog.Level, msg string, attrs ...any)

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(level slog.Level) bool
}

// rootHandler is swapped by SetDefaultHandler. Loggers resolve it at log
// time, so package-level loggers created before initialization still follow
// the configured handler.
var rootHandler atomic.Value

func init() {
	rootHandler.Store(DiscardHandler())
}

// SetDefaultHandler sets the handler backing all loggers of this package.
func SetDefaultHandler(h slog.Handler) {
	rootHandler.Store(h)
}

type logger struct {
	attrs []any
}

func (l *logger) resolve() *slog.Logger {
	inner := slog.New(rootHandler.Load().(slog.Handler))
	if len(l.attrs) > 0 {
		inner = inner.With(l.attrs...)
	}
	return inner
}

func (l *logger) With(ctx ...any) Logger {
	attrs := make([]any, 0, len(l.attrs)+len(ctx))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, ctx...)
	return &logger{attrs: attrs}
}

func (l *logger) Trace(msg string, ctx ...any) { l.Write(LevelTrace, msg, ctx...) }
func (l *logger) Debug(msg string, ctx ...any) { l.Write(LevelDebug, msg, ctx...) }
func (l *logger) Info(msg string, ctx ...any)  { l.Write(LevelInfo, msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...any)  { l.Write(LevelWarn, msg, ctx...) }
func (l *logger) Error(msg string, ctx ...any) { l.Write(LevelError, msg, ctx...) }

func (l *logger) Write(level slog.Level, msg string, attrs ...any) {
	l.resolve().Log(context.Background(), level, msg, attrs...)
}

func (l *logger) Enabled(level slog.Level) bool {
	return l.resolve().Enabled(context.Background(), level)
}

// Root returns the root logger.
func Root() Logger {
	return &logger{}
}

// WithContext returns a logger bound to the given context attribute, e.g.
// WithContext("pkg", "stakingpool").
func WithContext(key, value string) Logger {
	return Root().With(key, value)
}

// InitTextLogging points the root handler at stderr logfmt output with the
// given minimum level. Convenience for commands and tests.
func InitTextLogging(level slog.Level) {
	var lvl slog.LevelVar
	lvl.Set(level)
	SetDefaultHandler(LogfmtHandlerWithLevel(os.Stderr, &lvl))
}
