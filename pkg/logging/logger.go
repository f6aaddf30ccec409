// Package logging wraps log/slog with the level/format knobs the
// teacher's pkg/logging exposes, scaled down to what a single overlay
// node process needs (no file rotation or sampling: a node logs to its
// own stdout/stderr and an operator's log collector handles the rest).
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Level mirrors the teacher's LogLevel enum over slog's levels.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel accepts the config-file spelling ("debug"|"info"|"warn"|"error").
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format selects the slog.Handler backing a Logger.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config controls New's output.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
	Node   string // the node address, attached to every record
}

// New builds a *slog.Logger per cfg. A nil cfg.Output defaults to
// os.Stderr, matching where the teacher's structured logger sends
// unbuffered output.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel()}

	var handler slog.Handler
	if cfg.Format == FormatText {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Node != "" {
		logger = logger.With("node", cfg.Node)
	}
	return logger
}

// WithCorrelationID attaches a correlation id (e.g. a request or
// task-bag id) that should appear on every subsequent log line derived
// from l, mirroring the teacher's WithContext/WithFields idiom of
// returning a narrowed logger rather than threading the id through every
// call site.
func WithCorrelationID(l *slog.Logger, id string) *slog.Logger {
	return l.With("correlation_id", id)
}

// WithTransactionID attaches a 2PC transaction id so every log line
// belonging to one split/merge/leave/insert round can be grepped as a
// unit, per the Logging section's stated goal.
func WithTransactionID(l *slog.Logger, txID uint64) *slog.Logger {
	return l.With("tx_id", txID)
}
