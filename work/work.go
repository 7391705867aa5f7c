// Package work implements spec.md §4.3's work queue and the two
// always-present per-core tasks that drive it: master and dealer. A
// worker task, spawned by master, drains local work until none
// remains, then parks at the front of the worker wait queue so the
// next submission reuses it ahead of a fresh spawn.
//
// Grounded on the teacher's control/control.go coordination shape
// (global hot/stop flags generalized into core.Core's own stop flag
// and idle-wait path) and syncharvester/syncharvester.go's background
// drain loop (poll the queue, process, idle-wait, repeat).
package work

import (
	"time"

	"github.com/mainmemory/mainmemory/core"
	"github.com/mainmemory/mainmemory/sched"
	"github.com/mainmemory/mainmemory/task"
)

// Item is spec.md §3's Work item entity: a routine and argument word,
// plus whether it must run on a specific core rather than wherever
// picked it up. core.WorkItem carries Routine/Arg across the inbox
// ring; Item adds the Pinned bit, which no function in this package
// reads.
type Item struct {
	Routine func(arg uintptr)
	Arg     uintptr
	Pinned  bool
}

// Runtime bundles a Core with the master/dealer/worker machinery that
// drives its local work queue.
type Runtime struct {
	Core       *core.Core
	Dispatcher *sched.Dispatcher
	workerWait sched.WaitQueue
}

// NewRuntime wraps c with the master/dealer/worker machinery.
func NewRuntime(c *core.Core) *Runtime {
	return &Runtime{Core: c, Dispatcher: c.Dispatcher}
}

// Boot spawns the master and dealer tasks; the caller drives the
// dispatcher loop (Step) from here on.
func (r *Runtime) Boot() {
	master := task.New("master", task.PriorityMaster, r.masterBody)
	dealer := task.New("dealer", task.PriorityIdle, r.dealerBody)
	r.Dispatcher.Spawn(master)
	r.Dispatcher.Spawn(dealer)
}

// masterBody is spec.md §4.3's Master: while the core is not
// stopping, if there is local work, either wake an idle worker to
// pull it (the worker re-checks the local queue itself on resume) or,
// if none is idle and the live-worker count is below the configured
// maximum, spawn a fresh one.
func (r *Runtime) masterBody(self *task.Task) {
	for !r.Core.Stopped() {
		if r.Core.HasLocalWork() {
			if r.workerWait.Len() > 0 {
				r.Dispatcher.Signal(&r.workerWait)
			} else if item, ok := r.Core.PopLocalWork(); ok {
				if r.Core.SpawnWorker() {
					w := task.New("worker", task.PriorityDefault, r.workerBody(item))
					r.Dispatcher.Spawn(w)
				} else {
					r.Core.PushLocalWork(item)
				}
			}
		}
		r.Dispatcher.Yield(self)
	}
}

// dealerBody is spec.md §4.3's Dealer: drain the inbox/sched/chunks
// rings, advance the timer wheel, then idle-wait with a 1-second
// timeout (the event backend on the primary core, a timed condition
// on a secondary core) before yielding back.
func (r *Runtime) dealerBody(self *task.Task) {
	for !r.Core.Stopped() {
		r.Core.Tick()
		if !r.Core.HasLocalWork() && r.Dispatcher.RunQueueLen() == 0 {
			r.Core.IdleSleep(core.IdleWaitTimeoutMs * time.Millisecond)
		}
		r.Dispatcher.Yield(self)
	}
}

// workerBody returns a task start function that runs first exactly
// once, then loops: execute, check the local queue, otherwise
// wait_front on the worker wait queue (spec.md §4.3) so this worker is
// reused ahead of a fresh spawn the next time master sees work.
func (r *Runtime) workerBody(first core.WorkItem) func(*task.Task) {
	return func(self *task.Task) {
		item := first
		for {
			if item.Routine != nil {
				item.Routine(item.Arg)
			}
			if next, ok := r.Core.PopLocalWork(); ok {
				item = next
				continue
			}
			r.Dispatcher.WaitFront(&r.workerWait, self)
			next, ok := r.Core.PopLocalWork()
			if !ok {
				item = core.WorkItem{}
				continue
			}
			item = next
		}
	}
}
