package action

import (
	"github.com/mainmemory/mainmemory/core"
	"github.com/mainmemory/mainmemory/sched"
	"github.com/mainmemory/mainmemory/task"
)

// DelegateStrategy is spec.md §4.5.3's delegate strategy: actions are
// posted as work items to the partition's owning core's inbox ring,
// and the requesting task blocks until that core's dealer has run it.
//
// Grounded on core.Core.SubmitWork's inbox-ring producer contract.
// Completion is signalled back with core.Core.SubmitSchedule rather
// than a sched.Future broadcast: a Future's wait queue belongs to the
// *caller's* dispatcher, and spec.md §5 requires per-core structures
// be touched only by their owning thread — the owner core's worker
// goroutine would otherwise be mutating the caller core's run queue
// directly. SubmitSchedule exists exactly for this: it hands the
// resumption back across the ring so the caller's own dealer is the
// one that calls Dispatcher.RunTask.
type DelegateStrategy struct {
	// Owner maps a partition index to the core.Core that owns it;
	// actions for that partition are only ever executed by that
	// core's own dealer, matching spec.md §5's "memcache table's
	// bucket arrays ... are accessed only by the partition's owning
	// strategy".
	Owner []*core.Core
}

// NewDelegateStrategy returns a strategy routing each partition index
// to owners[i].
func NewDelegateStrategy(owners []*core.Core) *DelegateStrategy {
	return &DelegateStrategy{Owner: owners}
}

// Execute posts d to be run on partIndex's owning core, blocking self
// (the calling task, dispatched by disp on callerCore) until the
// owning core's dealer drains its inbox, runs d, and schedules self
// back onto callerCore.
func (s *DelegateStrategy) Execute(partIndex int, d *Descriptor, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core) {
	owner := s.Owner[partIndex]

	owner.SubmitWork(core.WorkItem{
		Routine: func(arg uintptr) {
			Execute(d)
			callerCore.SubmitSchedule(self)
		},
	})

	disp.Block(self)
}
