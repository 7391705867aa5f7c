// Package netio implements spec.md §6's minimal socket contract and
// §4.4/§4.6's listening server and per-connection reader/writer
// tasks. Grounded on the teacher's (deleted) ws/ws_io.go and
// ws_conn.go — a hand-rolled non-blocking read loop driven by
// readiness callbacks from its own poller — adapted here from a
// single hard-coded WebSocket client connection into the general
// Socket contract spec.md §6 names. A reader task arms a short read
// deadline and treats its expiry as "no data yet, yield the baton and
// try again" (package protocol's Connection.readerBody), the Go
// analogue of spec.md §4.4's per-socket readiness registration: the
// dispatcher's single-active-task baton, not an OS thread, is the
// resource a blocking call would otherwise monopolize, so the
// suspension point has to be bounded rather than an unqualified
// blocking Read. The event backend (package event) is still exactly
// what spec.md §4.4 describes; it backs the primary core's idle wait
// (package core's Core.SetIdleHook), not per-connection I/O.
package netio

import (
	"net"
	"time"
)

// Socket is spec.md §6's external-collaborator contract: everything
// the core needs from a connection, independent of transport.
type Socket interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Close() error
	SetReadTimeout(d time.Duration) error
	SetNonblock() error
}

// netSocket adapts a net.Conn (TCP or Unix) to Socket.
type netSocket struct {
	conn net.Conn
}

// NewSocket wraps conn as a Socket.
func NewSocket(conn net.Conn) Socket { return &netSocket{conn: conn} }

func (s *netSocket) Read(buf []byte) (int, error)  { return s.conn.Read(buf) }
func (s *netSocket) Write(buf []byte) (int, error) { return s.conn.Write(buf) }
func (s *netSocket) Close() error                  { return s.conn.Close() }

// SetReadTimeout arms a read deadline d in the future, or clears it
// when d is zero, per spec.md §6's `set_read_timeout(µs)`.
func (s *netSocket) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		return s.conn.SetReadDeadline(time.Time{})
	}
	return s.conn.SetReadDeadline(time.Now().Add(d))
}

// SetNonblock is a no-op: Go's net.Conn is always driven through the
// runtime's netpoller, which is the Go-native analogue of the
// non-blocking-fd-plus-event-backend pairing spec.md §6 names as a
// socket registration hook. There is no separate mode to request.
func (s *netSocket) SetNonblock() error { return nil }
