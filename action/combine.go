package action

import (
	"sync/atomic"

	"github.com/mainmemory/mainmemory/cpupause"
)

// opNode is one queued contender in a partition's combiner, grounded on
// compactqueue128's fixed-arena, handle-indexed node shape — adapted
// here from an index-addressed arena slot to a heap node addressed by
// pointer, since the combiner's queue depth is unbounded and contended
// across cores rather than single-threaded and capacity-bounded like
// compactqueue128's priority buckets.
type opNode struct {
	desc *Descriptor
	done atomic.Bool
	next *opNode
}

// Combiner is spec.md §4.5.3's combine strategy: a lock-free queue per
// partition in which one contender wins the right to execute a batch
// of queued actions on behalf of everyone else, who spin-wait on their
// own action's done flag. HandoffLimit is
// original_source/src/base/combiner.h's handoff limit: the number of
// operations one winner executes before it releases the right to
// combine, even if the queue is not yet empty, so no single contender
// can starve the others under sustained load. The count is checked
// after each drained batch, and a contender still spinning on its done
// flag takes over the right to combine once it is released.
type Combiner struct {
	head         atomic.Pointer[opNode]
	locked       atomic.Bool
	HandoffLimit int
}

// NewCombiner returns a combiner with the given per-winner handoff
// limit.
func NewCombiner(handoffLimit int) *Combiner {
	if handoffLimit <= 0 {
		handoffLimit = 32
	}
	return &Combiner{HandoffLimit: handoffLimit}
}

// Execute enqueues d and either executes it itself (having won the
// right to combine) along with as much of the rest of the queue as
// its handoff limit allows, or spins until whichever contender did
// win has executed it on its behalf, becoming the winner itself if the
// right to combine is released first.
func (c *Combiner) Execute(d *Descriptor) {
	n := &opNode{desc: d}
	for {
		old := c.head.Load()
		n.next = old
		if c.head.CompareAndSwap(old, n) {
			break
		}
	}

	for miss := 0; !c.locked.CompareAndSwap(false, true); miss++ {
		if n.done.Load() {
			return
		}
		cpupause.Relax(miss)
	}

	executed := 0
	for {
		batch := c.head.Swap(nil)
		executed += c.drain(batch)
		if executed >= c.HandoffLimit {
			break
		}
		// Nothing observably queued right now; release the lock, then
		// re-check head. A pusher that lost the CompareAndSwap race
		// between our head.Swap and our locked.Store below would
		// otherwise be left spinning on its done flag with no
		// remaining winner to drain it, since it saw locked == true
		// and never became the drainer itself.
		c.locked.Store(false)
		if c.head.Load() == nil {
			return
		}
		if !c.locked.CompareAndSwap(false, true) {
			// Someone else claimed the winner role in the gap; their
			// batch (or a later one) will include whatever is queued.
			return
		}
	}
	c.locked.Store(false)
}

// drain runs every action in batch, oldest-enqueued first, and reports
// how many it executed. A caller's own n is either present in the
// first batch its call to Execute observes or was already executed by
// an earlier winner: a winner only releases the lock after draining
// every batch it swapped off the head.
func (c *Combiner) drain(batch *opNode) int {
	var fifo *opNode
	for p := batch; p != nil; {
		next := p.next
		p.next = fifo
		fifo = p
		p = next
	}
	count := 0
	for p := fifo; p != nil; p = p.next {
		Execute(p.desc)
		p.done.Store(true)
		count++
	}
	return count
}
