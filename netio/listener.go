package netio

import (
	"net"
	"sync/atomic"

	"github.com/mainmemory/mainmemory/core"
)

// Listener is spec.md §4.4/§4.6's listening server: it accepts
// connections on its own goroutine (the "listener task" has no
// scheduling state of its own to protect, so it does not need to run
// on any particular core) and hands each accepted socket to a target
// core's inbox ring as a work item, so the connection's actual reader
// task is spawned by that core's own dealer — never by the accept
// loop's goroutine directly, preserving spec.md §5's "per-core
// structures are touched only by the owning thread".
type Listener struct {
	ln net.Listener

	// Cores is the pool of cores new connections are distributed
	// across, round-robin.
	Cores []*core.Core
	next  atomic.Uint64

	// Spawn is called on the chosen core's own goroutine (inside a
	// work item it accepted off its inbox ring) with the accepted
	// socket, to create the connection and spawn its reader/writer
	// tasks.
	Spawn func(owner *core.Core, sock Socket)
}

// Listen opens network/addr (e.g. "tcp", "127.0.0.1:11211", or "unix",
// "mm_cmd.sock") and returns a Listener ready to Serve.
func Listen(network, addr string) (*Listener, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln}, nil
}

// Addr reports the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Serve runs the accept loop until the listener is closed. Each
// accepted connection is round-robined across l.Cores and posted as a
// work item so l.Spawn runs on the target core's own goroutine.
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return err
		}
		sock := NewSocket(conn)
		owner := l.pick()
		owner.SubmitWork(core.WorkItem{
			Routine: func(arg uintptr) {
				l.Spawn(owner, sock)
			},
		})
	}
}

// pick returns the next core in round-robin order.
func (l *Listener) pick() *core.Core {
	n := l.next.Add(1) - 1
	return l.Cores[n%uint64(len(l.Cores))]
}
