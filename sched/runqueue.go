// Package sched implements the per-core cooperative dispatcher spec.md
// §4.1 describes: a priority run queue, FIFO/LIFO wait queues, futures,
// and the yield/block/run/exit primitives that drive task.Task values.
//
// Grounded on control/control.go's flag-polling coordination shape
// (global hot/stop flags become a per-core Dispatcher's own stop flag
// and run queue). The Dispatcher's fields carry no cache-line padding.
package sched

import "github.com/mainmemory/mainmemory/task"

// RunQueue is an O(1)-pick-highest-priority set of FIFO bands, exactly
// spec.md §2's "Run queue": a per-priority FIFO list of runnable tasks.
type RunQueue struct {
	heads [task.NumPriorities]*task.Task
	tails [task.NumPriorities]*task.Task
	count [task.NumPriorities]int
}

// Push enqueues t at the tail of its priority band.
func (q *RunQueue) Push(t *task.Task) {
	p := t.Priority
	t.Next, t.Prev = nil, q.tails[p]
	if q.tails[p] != nil {
		q.tails[p].Next = t
	} else {
		q.heads[p] = t
	}
	q.tails[p] = t
	q.count[p]++
}

// PopHighest removes and returns the head of the highest (lowest-numbered)
// non-empty priority band, or nil if every band is empty. This is the
// run queue's round-robin-within-band O(1) pick spec.md §4.1 requires.
func (q *RunQueue) PopHighest() *task.Task {
	for p := task.Priority(0); p < task.NumPriorities; p++ {
		if t := q.heads[p]; t != nil {
			q.heads[p] = t.Next
			if q.heads[p] != nil {
				q.heads[p].Prev = nil
			} else {
				q.tails[p] = nil
			}
			t.Next, t.Prev = nil, nil
			q.count[p]--
			return t
		}
	}
	return nil
}

// Len reports the total number of runnable tasks across all bands.
func (q *RunQueue) Len() int {
	n := 0
	for _, c := range q.count {
		n += c
	}
	return n
}

// Empty reports whether no priority band holds a runnable task.
func (q *RunQueue) Empty() bool { return q.Len() == 0 }
