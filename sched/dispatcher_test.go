package sched

import (
	"testing"
	"time"

	"github.com/mainmemory/mainmemory/task"
)

func TestStepRunsHighestPriorityFirst(t *testing.T) {
	d := New()
	var order []string

	idle := task.New("idle", task.PriorityIdle, func(self *task.Task) {
		order = append(order, "idle")
	})
	master := task.New("master", task.PriorityMaster, func(self *task.Task) {
		order = append(order, "master")
	})
	d.Spawn(idle)
	d.Spawn(master)

	for d.RunQueueLen() > 0 {
		if !withTimeout(t, d.Step) {
			t.Fatal("Step never returned")
		}
	}
	if len(order) != 2 || order[0] != "master" || order[1] != "idle" {
		t.Fatalf("expected [master idle], got %v", order)
	}
}

func TestYieldReEnqueuesAndResumesLater(t *testing.T) {
	d := New()
	var phase int
	tk := task.New("yielder", task.PriorityDefault, func(self *task.Task) {
		phase = 1
		d.Yield(self)
		phase = 2
	})
	d.Spawn(tk)

	if !withTimeout(t, d.Step) {
		t.Fatal("first Step never returned")
	}
	if phase != 1 {
		t.Fatalf("expected phase 1 after first Step, got %d", phase)
	}
	if d.RunQueueLen() != 1 {
		t.Fatalf("expected task re-enqueued after yield, runq len=%d", d.RunQueueLen())
	}

	if !withTimeout(t, d.Step) {
		t.Fatal("second Step never returned")
	}
	if phase != 2 {
		t.Fatalf("expected phase 2 after second Step, got %d", phase)
	}
}

func TestWaitBackBlocksUntilSignal(t *testing.T) {
	d := New()
	var q WaitQueue
	var phase int

	waiter := task.New("waiter", task.PriorityDefault, func(self *task.Task) {
		phase = 1
		d.WaitBack(&q, self)
		phase = 2
	})
	d.Spawn(waiter)

	withTimeout(t, d.Step) // dispatch: task blocks on q
	if phase != 1 {
		t.Fatalf("expected phase 1, got %d", phase)
	}
	if d.RunQueueLen() != 0 {
		t.Fatal("expected empty run queue while blocked")
	}

	d.Signal(&q)
	if d.RunQueueLen() != 1 {
		t.Fatal("expected task re-enqueued after signal")
	}

	withTimeout(t, d.Step)
	if phase != 2 {
		t.Fatalf("expected phase 2 after resumption, got %d", phase)
	}
}

func TestFutureAwaitUnblocksOnSet(t *testing.T) {
	d := New()
	f := NewFuture()
	var got any
	var gotOk bool

	waiter := task.New("waiter", task.PriorityDefault, func(self *task.Task) {
		got, _, gotOk = d.Await(f, self)
	})
	d.Spawn(waiter)
	withTimeout(t, d.Step) // blocks on the future's wait queue

	d.SetFuture(f, "result", nil)
	if d.RunQueueLen() != 1 {
		t.Fatal("expected waiter re-enqueued after SetFuture")
	}

	withTimeout(t, d.Step)
	if !gotOk || got != "result" {
		t.Fatalf("expected (\"result\", true), got (%v, %v)", got, gotOk)
	}
}

func TestReapDeadCollectsExitedTasks(t *testing.T) {
	d := New()
	tk := task.New("short", task.PriorityDefault, func(*task.Task) {})
	d.Spawn(tk)
	withTimeout(t, d.Step)

	dead := d.ReapDead()
	if len(dead) != 1 || dead[0] != tk {
		t.Fatalf("expected [tk] in dead list, got %v", dead)
	}
	if d.ReapDead() != nil {
		t.Fatal("expected dead list drained after first ReapDead")
	}
}

func withTimeout(t *testing.T, fn func() bool) bool {
	done := make(chan bool, 1)
	go func() { done <- fn() }()
	select {
	case v := <-done:
		return v
	case <-time.After(time.Second):
		t.Fatal("operation timed out")
		return false
	}
}
