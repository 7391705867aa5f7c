package action

import (
	"github.com/mainmemory/mainmemory/core"
	"github.com/mainmemory/mainmemory/sched"
	"github.com/mainmemory/mainmemory/task"
)

// Strategy is the common shape of spec.md §4.5.3's three build-time
// synchronization modes. callerCore/disp/self identify the calling
// task's own core and dispatcher — the locking and combine strategies
// never need them since they run d inline on the calling goroutine,
// but the delegate strategy needs callerCore to hand the task back
// across the ring once the owning core has run d.
type Strategy interface {
	Execute(partIndex int, d *Descriptor, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core)
}

var (
	_ Strategy = (*LockingStrategy)(nil)
	_ Strategy = (*DelegateStrategy)(nil)
	_ Strategy = (*CombineStrategy)(nil)
)
