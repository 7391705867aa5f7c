// Package event implements spec.md §4.4's event backend: an
// abstraction over epoll (Linux) and kqueue (BSD/Darwin) with a
// self-pipe so a core's dealer can block waiting for socket readiness
// on the exact same call it uses to be woken by another core.
//
// Grounded on joeycumines-go-utilpkg/eventloop's poller_linux.go /
// poller_darwin.go / wakeup_linux.go (one-shot epoll re-arm, kqueue
// EVFILT_READ/EVFILT_WRITE, pipe-based wakeup), reworked from that
// package's own internal dispatch loop into the Prepare/Cleanup/Listen
// shape spec.md names instead of a callback registry owning the event
// loop. In this program it backs only the primary core's idle wait and
// wake-up; netio sockets do not register with it.
package event

// Kind distinguishes the delivery categories spec.md §4.4 enumerates.
type Kind int

const (
	Input Kind = iota
	InputError
	Output
	OutputError
)

// Delivery pairs one event with the file descriptor it occurred on.
type Delivery struct {
	Fd   int
	Kind Kind
}

// ChangeOp is a pending register/unregister/rearm request applied at
// the top of the next Listen call.
type ChangeOp int

const (
	Register ChangeOp = iota
	Unregister
	Rearm
)

// Change describes one pending modification to the watched-fd set.
// InputOneShot/OutputOneShot mirror spec.md §4.4's per-fd one-shot
// flags; epoll maps them to EPOLLONESHOT and kqueue to EV_ONESHOT.
type Change struct {
	Fd            int
	Op            ChangeOp
	WatchInput    bool
	WatchOutput   bool
	InputOneShot  bool
	OutputOneShot bool
}

// Backend is spec.md §4.4's abstract event backend interface.
type Backend interface {
	// Prepare creates the backend's kernel object (epoll/kqueue fd)
	// and registers its self-pipe read end.
	Prepare() error
	// Cleanup releases the backend's kernel object and self-pipe.
	Cleanup() error
	// Listen applies all pending changes in one pass (it does not split
	// them into slices or retry them), then waits up to timeoutMs for
	// events, appending deliveries to out.
	// A negative timeout blocks indefinitely; self-pipe bytes are
	// drained internally and never appear in out.
	Listen(changes []Change, out []Delivery, timeoutMs int) ([]Delivery, error)
	// Wake writes a byte to the self-pipe, interrupting a concurrent
	// Listen call on another goroutine/thread.
	Wake() error
}
