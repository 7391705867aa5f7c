// Package mmlog implements spec.md §6's Logger external collaborator —
// "an unstructured byte sink taking pre-formatted chunks; the core
// reclaims its chunks on the originating core" — and the daemon-level
// structured logging the ambient stack in SPEC_FULL.md calls for.
//
// Grounded on the teacher's debug/debug.go (DropMessage/DropError: a
// hand-rolled, allocation-free sink for cold-path diagnostics) for the
// shape of the hot-path-safe contract, backed here by
// github.com/rs/zerolog the way
// joeycumines-go-utilpkg/logiface-zerolog wraps zerolog behind a small
// interface rather than calling it directly everywhere. Cold paths
// (startup, shutdown, connection errors) log structured fields through zerolog directly; the
// per-connection/per-partition hot path never builds a zerolog event —
// it only ever appends pre-formatted bytes to a Sink, matching
// spec.md's contract.
package mmlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the daemon's structured, cold-path logger.
type Logger struct {
	zl zerolog.Logger
}

// New returns a Logger writing level-filtered structured records to w.
func New(w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NewConsole returns a Logger writing to stderr, human-readable when
// stderr is a terminal and JSON Lines otherwise — the same console/JSON
// split the rest of the pack's zerolog-backed loggers make.
func NewConsole(level zerolog.Level) *Logger {
	if isTerminal(os.Stderr) {
		return New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}, level)
	}
	return New(os.Stderr, level)
}

// Field is one structured key/value attached to a log line.
type Field struct {
	Key string
	Val any
}

func F(key string, val any) Field { return Field{Key: key, Val: val} }

func (l *Logger) event(e *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		e = e.Interface(f.Key, f.Val)
	}
	e.Msg(msg)
}

func (l *Logger) Debug(msg string, fields ...Field) { l.event(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.event(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.event(l.zl.Warn(), msg, fields) }

// Error logs msg with err attached, spec.md's ParseError/ProtocolError/
// ResourceError/IOError kinds surfaced as structured fields rather than
// Go error wrapping soup (SPEC_FULL.md's ambient-stack error-handling
// note).
func (l *Logger) Error(msg string, err error, fields ...Field) {
	e := l.zl.Error().Err(err)
	for _, f := range fields {
		e = e.Interface(f.Key, f.Val)
	}
	e.Msg(msg)
}

// Fatal logs msg with err attached and exits the process — spec.md
// §7's Fatal kind ("invariant violated — abort the process").
func (l *Logger) Fatal(msg string, err error, fields ...Field) {
	e := l.zl.Fatal().Err(err)
	for _, f := range fields {
		e = e.Interface(f.Key, f.Val)
	}
	e.Msg(msg)
}

// With returns a Logger that always attaches the given fields, for a
// per-core sub-logger (e.g. mmlog.New(...).With(mmlog.F("core", id))).
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Val)
	}
	return &Logger{zl: ctx.Logger()}
}
