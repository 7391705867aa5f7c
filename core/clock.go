// Package core assembles the per-CPU worker thread spec.md §3's Core
// entity describes: a cooperative dispatcher (sched.Dispatcher), a
// timer wheel, three inbound SPSC rings, CPU affinity, and a cached
// "current time" pair, all owned exclusively by one goroutine locked to
// one OS thread.
//
// Grounded on control/control.go's global hot/stop-flag shape (now one
// pair of flags per Core instead of process-wide). The idle path a core
// falls into when it has nothing to run is Core.IdleSleep: a timed
// condition wait, or the event backend on the primary core; it does
// not spin.
package core

import "time"

// Clock is spec.md §6's external Clock collaborator: monotonic and
// realtime microsecond readings. The core caches a Clock reading once
// per dispatch tick rather than calling through it on every timer check.
type Clock interface {
	MonotonicUs() int64
	RealtimeUs() int64
}

// SystemClock is the default Clock, backed by the standard library.
// No pack example ties a third-party clock/time library to a
// monotonic-µs contract this narrow, and time.Now() already returns a
// reading with a monotonic component on every supported platform, so
// stdlib stays here as the single-purpose external-collaborator shim
// spec.md §6 describes, not a place to force in a dependency.
type SystemClock struct{ start time.Time }

// NewSystemClock returns a Clock anchored at the current instant.
func NewSystemClock() *SystemClock { return &SystemClock{start: time.Now()} }

// MonotonicUs returns microseconds elapsed since the clock was created.
func (c *SystemClock) MonotonicUs() int64 {
	return time.Since(c.start).Microseconds()
}

// RealtimeUs returns the current wall-clock time in Unix microseconds.
func (c *SystemClock) RealtimeUs() int64 {
	return time.Now().UnixMicro()
}
