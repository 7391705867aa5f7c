package action

import (
	"sync"

	"github.com/mainmemory/mainmemory/core"
	"github.com/mainmemory/mainmemory/sched"
	"github.com/mainmemory/mainmemory/task"
)

// LockingStrategy is spec.md §4.5.3's direct/locking strategy: the
// caller holds a per-partition mutex, then calls the action's low-level
// implementation. mcache.Partition already guards every low-level call
// with its own mutex (the Go idiom grounded on
// CaloriaDigital-hub-IMCS/internal/storage/cache/shard.go's per-shard
// RWMutex). Execute holds this strategy's lock for one descriptor only,
// so two logically related actions (e.g. Create followed by Insert for
// the same command) issued through separate Execute calls can
// interleave with another caller's actions; ExecuteSequence holds it
// across several descriptors so they cannot.
type LockingStrategy struct {
	locks []sync.Mutex // one per partition, indexed the same way as the table
}

// NewLockingStrategy returns a strategy with one mutex per
// partition.
func NewLockingStrategy(partitionCount int) *LockingStrategy {
	return &LockingStrategy{locks: make([]sync.Mutex, partitionCount)}
}

// Execute runs d under partIndex's lock. disp/self/callerCore are
// accepted to satisfy the common Strategy interface shared with
// DelegateStrategy and CombineStrategy; the locking strategy never
// blocks the calling task, so none of the three are used.
func (s *LockingStrategy) Execute(partIndex int, d *Descriptor, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core) {
	s.locks[partIndex].Lock()
	Execute(d)
	s.locks[partIndex].Unlock()
}

// ExecuteSequence runs every descriptor in ds under a single critical
// section, so a caller building an entry (Create, then Insert) never
// has another actor's action interleave between the two.
func (s *LockingStrategy) ExecuteSequence(partIndex int, ds ...*Descriptor) {
	s.locks[partIndex].Lock()
	for _, d := range ds {
		Execute(d)
	}
	s.locks[partIndex].Unlock()
}
