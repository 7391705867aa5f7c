// Package task implements the cooperative unit of execution spec.md §3
// and §4.1 describe: a task with a priority, a state machine, a
// cancel flag, and a LIFO cleanup-handler stack, dispatched by exactly
// one core at a time.
//
// The teacher's stackful tasks context-switch via hand-written
// callee-saved-register assembly (control/control.go's pinned consumer
// loop is the closest teacher analogue: a dedicated goroutine that polls
// global flags rather than being resumed by another thread). spec.md §1
// and §9 both call the assembly stack-switch stub an external
// collaborator out of scope for this rewrite and explicitly bless a
// "cooperative state-machine representation or language-provided
// lightweight tasks" substitute. A Task here is therefore a parked
// goroutine: Park blocks the goroutine on a buffered resume channel,
// and Resume is the "context switch into T" operation — the channel
// holds one pending wake-up, so a Resume before the Park it targets
// still delivers,
// matching the "run of a not-yet-blocked task is idempotent" guarantee
// spec.md §4.1 calls out.
package task

import "sync/atomic"

// State mirrors the task lifecycle spec.md §3 enumerates.
type State int32

const (
	StateInvalid State = iota
	StatePending
	StateBlocked
	StateRunning
	StateExited
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StatePending:
		return "pending"
	case StateBlocked:
		return "blocked"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Priority bands a run queue dispatches in order, MASTER first.
type Priority int

const (
	PriorityMaster Priority = iota
	PriorityDefault
	PriorityIdle
	NumPriorities
)

// CleanupFunc is one entry of a task's cleanup-handler stack, run LIFO
// on exit and on best-effort cancellation unwind.
type CleanupFunc func()

// Task is one cooperatively scheduled unit of work. Fields touched only
// by the owning core's dispatcher goroutine (Priority, cleanup, result)
// are not synchronized; fields touched cross-goroutine (state, cancel,
// the resume channel) use atomics or channels.
type Task struct {
	Name     string
	Priority Priority

	state  atomic.Int32
	cancel atomic.Bool

	cleanup []CleanupFunc
	result  any
	resErr  error

	resumeCh chan struct{}
	start    func(t *Task)
	started  bool

	// Next links this task into whichever single list currently owns it
	// (a run-queue priority band or a wait queue). The
	// invariant a task is in at most one such list at a time (spec.md §3)
	// means a single link field suffices instead of container/list.
	Next *Task
	Prev *Task
}

// New allocates a task that will run start(t) once first resumed. The
// task begins in StatePending; the scheduler is responsible for placing
// it in a run queue.
func New(name string, priority Priority, start func(t *Task)) *Task {
	t := &Task{
		Name:     name,
		Priority: priority,
		start:    start,
		resumeCh: make(chan struct{}, 1),
	}
	t.state.Store(int32(StatePending))
	return t
}

// State returns the task's current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

func (t *Task) setState(s State) { t.state.Store(int32(s)) }

// MarkPending records that a scheduler has placed this task in a run
// queue but has not yet dispatched it. Touched only by the owning
// core's dispatcher, per spec.md's per-core-structures invariant.
func (t *Task) MarkPending() { t.setState(StatePending) }

// MarkBlocked records that this task has been parked on a wait queue.
func (t *Task) MarkBlocked() { t.setState(StateBlocked) }

// MarkStarted reports whether the task's goroutine has already been
// launched, and records that it now has been. A scheduler uses this to decide between `go t.Run(...)` and
// t.Resume() when dispatching.
func (t *Task) MarkStarted() (alreadyStarted bool) {
	alreadyStarted = t.started
	t.started = true
	return
}

// Cancel best-effort requests cooperative unwind: it does not force
// termination, matching spec.md's "general-purpose coroutine cancellation
// is not a goal" non-goal — callers of TestCancel decide when to unwind.
func (t *Task) Cancel() { t.cancel.Store(true) }

// TestCancel reports whether cancellation has been requested. A task's
// own code calls this at a suspension point and unwinds via its cleanup
// stack if true.
func (t *Task) TestCancel() bool { return t.cancel.Load() }

// PushCleanup installs fn to run, LIFO, when the task exits.
func (t *Task) PushCleanup(fn CleanupFunc) {
	t.cleanup = append(t.cleanup, fn)
}

// runCleanup runs the cleanup stack LIFO, as exit() does in spec.md §4.1.
func (t *Task) runCleanup() {
	for i := len(t.cleanup) - 1; i >= 0; i-- {
		t.cleanup[i]()
	}
	t.cleanup = nil
}

// Result returns the value (and error) the task's start function left
// behind via SetResult. Valid only after State() == StateExited.
func (t *Task) Result() (any, error) { return t.result, t.resErr }

// SetResult records the task's outcome; start functions call this
// before returning.
func (t *Task) SetResult(v any, err error) {
	t.result, t.resErr = v, err
}

// Run is the trampoline the owning core's dispatcher invokes exactly
// once, in a fresh goroutine, to begin the task. It marks the task
// running, calls start, then transitions to exited and runs cleanup.
// onExit lets the scheduler hook dead-list bookkeeping around the
// task's lifetime without task importing sched.
func (t *Task) Run(onExit func(*Task)) {
	t.setState(StateRunning)
	t.start(t)
	t.setState(StateExited)
	t.runCleanup()
	if onExit != nil {
		onExit(t)
	}
}

// Park blocks the calling goroutine — which is this task's own
// goroutine — until Resume is called. This is the Go-native stand-in
// for a context switch out of the task: the scheduler marks the task
// blocked or pending-but-not-yet-dispatched before calling Park, and
// whichever other task/goroutine makes it runnable again calls Resume.
func (t *Task) Park() {
	<-t.resumeCh
}

// Resume is the Go-native stand-in for a context switch into the task:
// it wakes a goroutine blocked in Park. The channel is buffered by one
// slot, so a Resume that arrives before the matching Park still
// delivers — the "run() of a task that hasn't blocked yet is still
// correct" guarantee spec.md §4.1 requires for wake-before-block races.
func (t *Task) Resume() {
	select {
	case t.resumeCh <- struct{}{}:
	default:
		// already has a pending wake-up queued; idempotent per spec.md §4.1.
	}
}
