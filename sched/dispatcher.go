package sched

import "github.com/mainmemory/mainmemory/task"

// Dispatcher is the single-threaded cooperative scheduler spec.md §4.1
// describes: exactly one goroutine — the owning core's dispatcher loop —
// drives it, and exactly one task is ever "active" (actually running Go
// code) at a time. The handoff between the dispatcher loop and whichever
// task is active is enforced with a one-slot baton channel rather than
// a mutex: Yield/Block/the task's natural return each hand the baton
// back before parking, and the dispatcher loop blocks on it until they
// do, so no two goroutines touch the run queue, wait queues, or dead
// list concurrently despite each task running on its own goroutine.
type Dispatcher struct {
	runq    RunQueue
	dead    []*task.Task
	current *task.Task
	baton   chan struct{}
	stopped bool
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{baton: make(chan struct{}, 1)}
}

// Current returns the task presently executing on this dispatcher, or
// nil when called from the dispatcher loop itself (between tasks).
func (d *Dispatcher) Current() *task.Task { return d.current }

// Spawn enqueues a newly created task for its first dispatch.
func (d *Dispatcher) Spawn(t *task.Task) {
	t.MarkPending()
	d.runq.Push(t)
}

// RunTask is spec.md's `run(task)`: makes a pending or blocked task
// runnable, enqueueing it at the tail of its priority band. Calling
// RunTask on an already-runnable or exited task is a no-op, matching
// the idempotence spec.md §4.1 requires for wake-before-block races.
//
// RunTask only re-enqueues; it never calls Resume itself. Only Step,
// when it actually dispatches the task, may wake its parked goroutine —
// otherwise the resumed task's code would run concurrently with
// whichever task is currently holding the baton, breaking the
// single-active-task guarantee the baton exists to enforce.
func (d *Dispatcher) RunTask(t *task.Task) {
	switch t.State() {
	case task.StateBlocked:
		t.MarkPending()
		d.runq.Push(t)
	case task.StatePending, task.StateRunning, task.StateExited, task.StateInvalid:
		// already runnable, currently active, or past running — no-op.
	}
}

// RunQueueLen reports the number of tasks awaiting dispatch.
func (d *Dispatcher) RunQueueLen() int { return d.runq.Len() }

// Step pops the highest-priority runnable task and dispatches it,
// blocking until that task yields, blocks, or exits and hands the
// baton back. It returns false if the run queue was empty; the caller,
// core.Core.Run, ends its dispatch loop on that.
func (d *Dispatcher) Step() bool {
	t := d.runq.PopHighest()
	if t == nil {
		return false
	}
	d.current = t
	if !t.MarkStarted() {
		go t.Run(func(done *task.Task) {
			d.dead = append(d.dead, done)
			d.baton <- struct{}{}
		})
	} else {
		t.Resume()
	}
	<-d.baton
	d.current = nil
	return true
}

// Yield is spec.md's `yield` as called from inside a task: it re-enqueues
// the calling task at the tail of its own priority band, hands control
// back to the dispatcher loop, and parks until the dispatcher resumes
// it on a later Step.
func (d *Dispatcher) Yield(self *task.Task) {
	self.MarkPending()
	d.runq.Push(self)
	d.baton <- struct{}{}
	self.Park()
}

// Block is spec.md's `block`: the caller must already have linked self
// onto some WaitQueue (via WaitBack/WaitFront) before calling Block —
// Block itself only marks the state and relinquishes the baton.
func (d *Dispatcher) Block(self *task.Task) {
	self.MarkBlocked()
	d.baton <- struct{}{}
	self.Park()
}

// WaitBack parks self at the tail of q and blocks — spec.md's
// `wait_back(q)`.
func (d *Dispatcher) WaitBack(q *WaitQueue, self *task.Task) {
	q.pushBack(self)
	d.Block(self)
}

// WaitFront parks self at the head of q and blocks — spec.md's
// `wait_front(q)`, used so an idle worker is reused ahead of a worker
// the master is about to spawn.
func (d *Dispatcher) WaitFront(q *WaitQueue, self *task.Task) {
	q.pushFront(self)
	d.Block(self)
}

// Signal is spec.md's `signal(q)`: dequeues the head of q, if any, and
// makes it runnable. Like RunTask, it only re-enqueues; Step wakes the
// task's goroutine when it is actually dispatched.
func (d *Dispatcher) Signal(q *WaitQueue) {
	if t := q.popFront(); t != nil {
		t.MarkPending()
		d.runq.Push(t)
	}
}

// Broadcast is spec.md's `broadcast(q)`: signals every task parked on q.
func (d *Dispatcher) Broadcast(q *WaitQueue) {
	for {
		t := q.popFront()
		if t == nil {
			return
		}
		t.MarkPending()
		d.runq.Push(t)
	}
}

// Cancel requests cooperative cancellation of a wait, removing the
// task from q without running it and marking its cancel flag — used by
// best-effort timeout/cancellation paths (spec.md §5).
func (d *Dispatcher) Cancel(q *WaitQueue, t *task.Task) {
	q.remove(t)
	t.Cancel()
	t.MarkPending()
	d.runq.Push(t)
}

// ReapDead drains and returns tasks that have exited since the last
// call, spec.md's "boot task reaps the dead list".
func (d *Dispatcher) ReapDead() []*task.Task {
	if len(d.dead) == 0 {
		return nil
	}
	dead := d.dead
	d.dead = nil
	return dead
}

// Stop requests that the dispatcher's owning core stop scheduling new
// work once the run queue drains.
func (d *Dispatcher) Stop() { d.stopped = true }

// Stopped reports whether Stop has been called.
func (d *Dispatcher) Stopped() bool { return d.stopped }
