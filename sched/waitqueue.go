package sched

import "github.com/mainmemory/mainmemory/task"

// WaitQueue is a doubly linked list of blocked tasks attached to an
// arbitrary address, spec.md §4.1.1's wait queue. Both ends support
// O(1) insertion so wait_back/wait_front can be offered without extra
// bookkeeping.
type WaitQueue struct {
	head *task.Task
	tail *task.Task
	n    int
}

// Len reports the number of tasks currently parked on the queue.
func (q *WaitQueue) Len() int { return q.n }

func (q *WaitQueue) pushBack(t *task.Task) {
	t.Next, t.Prev = nil, q.tail
	if q.tail != nil {
		q.tail.Next = t
	} else {
		q.head = t
	}
	q.tail = t
	q.n++
}

func (q *WaitQueue) pushFront(t *task.Task) {
	t.Prev, t.Next = nil, q.head
	if q.head != nil {
		q.head.Prev = t
	} else {
		q.tail = t
	}
	q.head = t
	q.n++
}

func (q *WaitQueue) popFront() *task.Task {
	t := q.head
	if t == nil {
		return nil
	}
	q.head = t.Next
	if q.head != nil {
		q.head.Prev = nil
	} else {
		q.tail = nil
	}
	t.Next, t.Prev = nil, nil
	q.n--
	return t
}

// remove unlinks t from wherever it currently sits in the queue, used
// when a waiter is cancelled before being signalled.
func (q *WaitQueue) remove(t *task.Task) {
	if t.Prev != nil {
		t.Prev.Next = t.Next
	} else if q.head == t {
		q.head = t.Next
	}
	if t.Next != nil {
		t.Next.Prev = t.Prev
	} else if q.tail == t {
		q.tail = t.Prev
	}
	t.Next, t.Prev = nil, nil
	q.n--
}
