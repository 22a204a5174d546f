// Copyright (c) 2026 The Stakewell developers

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
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelCrit  = slog.Level(12)
)

// Logger is the structured logging surface used across the codebase.
type Logger interface {
	// With returns a logger that includes the given attrs in every record.
	With(args ...any) Logger

	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type logger struct {
	inner *slog.Logger
}

func (l *logger) With(args ...any) Logger {
	return &logger{l.inner.With(args...)}
}

func (l *logger) write(level slog.Level, msg string, args ...any) {
	l.inner.Log(context.Background(), level, msg, args...)
}

func (l *logger) Trace(msg string, args ...any) { l.write(LevelTrace, msg, args...) }
func (l *logger) Debug(msg string, args ...any) { l.write(LevelDebug, msg, args...) }
func (l *logger) Info(msg string, args ...any)  { l.write(LevelInfo, msg, args...) }
func (l *logger) Warn(msg string, args ...any)  { l.write(LevelWarn, msg, args...) }
func (l *logger) Error(msg string, args ...any) { l.write(LevelError, msg, args...) }

var root atomic.Value

func init() {
	root.Store(&logger{slog.New(DiscardHandler())})
}

// SetDefault sets the handler backing the root logger and all loggers derived
// from it after this call.
func SetDefault(h slog.Handler) {
	root.Store(&logger{slog.New(h)})
}

// Root returns the process-wide root logger.
func Root() Logger {
	return root.Load().(*logger)
}

// WithContext returns a logger carrying the given attrs, typically
// ("pkg", <package name>).
func WithContext(args ...any) Logger {
	return Root().With(args...)
}

// NewLogger creates a logger over the given handler, independent of the root.
func NewLogger(h slog.Handler) Logger {
	return &logger{slog.New(h)}
}

// StderrHandler builds the default terminal handler writing to stderr.
func StderrHandler(lvl *slog.LevelVar, useColor bool) slog.Handler {
	return NewTerminalHandler(os.Stderr, lvl, useColor)
}

// FromLegacyLevel converts from old log15 verbosity values to slog levels.
func FromLegacyLevel(lvl int) slog.Level {
	switch lvl {
	case 0:
		return LevelCrit
	case 1:
		return LevelError
	case 2:
		return LevelWarn
	case 3:
		return LevelInfo
	case 4:
		return LevelDebug
	default:
		return LevelTrace
	}
}
