package action

import (
	"github.com/mainmemory/mainmemory/core"
	"github.com/mainmemory/mainmemory/sched"
	"github.com/mainmemory/mainmemory/task"
)

// CombineStrategy is spec.md §4.5.3's combine build mode: one Combiner
// per partition, selected by partition index exactly like
// LockingStrategy's per-partition mutex slice.
type CombineStrategy struct {
	combiners []*Combiner
}

// NewCombineStrategy returns a strategy with one combiner per
// partition, each with the given per-winner handoff limit.
func NewCombineStrategy(partitionCount, handoffLimit int) *CombineStrategy {
	s := &CombineStrategy{combiners: make([]*Combiner, partitionCount)}
	for i := range s.combiners {
		s.combiners[i] = NewCombiner(handoffLimit)
	}
	return s
}

// Execute runs d through partIndex's combiner. disp/self/callerCore
// are accepted to satisfy the common Strategy interface shared with
// DelegateStrategy and LockingStrategy; the combine strategy never
// blocks the calling task (it either runs d itself or spins briefly
// for a winner), so none of the three are used.
func (s *CombineStrategy) Execute(partIndex int, d *Descriptor, disp *sched.Dispatcher, self *task.Task, callerCore *core.Core) {
	s.combiners[partIndex].Execute(d)
}
