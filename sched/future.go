package sched

import "github.com/mainmemory/mainmemory/task"

// FutureState mirrors spec.md §3's Future entity state enum.
type FutureState int32

const (
	FuturePending FutureState = iota
	FutureReady
	FutureCancelled
)

// Future is spec.md's one-shot result cell: a producing routine calls
// SetFuture once, a consumer calls Await (possibly more than once, possibly
// from several waiting tasks) to observe the value. It lives until the
// last waiter has observed the result, same as any other value shared
// between the producer task and its waiters.
type Future struct {
	state FutureState
	value any
	err   error
	wq    WaitQueue
}

// NewFuture returns a pending future.
func NewFuture() *Future { return &Future{state: FuturePending} }

// State reports the future's current state.
func (f *Future) State() FutureState { return f.state }

// SetFuture stores the result and wakes every waiter. Calling it more than
// once is a programming error in the producer and is ignored after the
// first call, since a future is defined to be one-shot.
func (d *Dispatcher) SetFuture(f *Future, value any, err error) {
	if f.state != FuturePending {
		return
	}
	f.value, f.err = value, err
	f.state = FutureReady
	d.Broadcast(&f.wq)
}

// CancelFuture marks f cancelled and wakes every waiter; Await on a
// cancelled future returns immediately with (nil, nil, false).
func (d *Dispatcher) CancelFuture(f *Future) {
	if f.state != FuturePending {
		return
	}
	f.state = FutureCancelled
	d.Broadcast(&f.wq)
}

// Await blocks self until f is ready or cancelled, then returns the
// stored value/error, or ok=false if the future was cancelled.
func (d *Dispatcher) Await(f *Future, self *task.Task) (value any, err error, ok bool) {
	for f.state == FuturePending {
		d.WaitBack(&f.wq, self)
	}
	if f.state == FutureCancelled {
		return nil, nil, false
	}
	return f.value, f.err, true
}
