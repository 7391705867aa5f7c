package task

import (
	"testing"
	"time"
)

func TestRunTransitionsStateAndRunsCleanupLIFO(t *testing.T) {
	var order []int
	tk := New("t1", PriorityDefault, func(self *Task) {
		self.PushCleanup(func() { order = append(order, 1) })
		self.PushCleanup(func() { order = append(order, 2) })
		self.SetResult(42, nil)
	})

	var exitedState State
	done := make(chan struct{})
	go func() {
		tk.Run(func(self *Task) { exitedState = self.State(); close(done) })
	}()
	<-done

	if exitedState != StateExited {
		t.Fatalf("expected exited on exit, got %v", exitedState)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("expected LIFO cleanup order [2 1], got %v", order)
	}
	v, err := tk.Result()
	if err != nil || v != 42 {
		t.Fatalf("expected result 42/nil, got %v/%v", v, err)
	}
}

func TestResumeBeforeParkStillDelivers(t *testing.T) {
	tk := New("t2", PriorityDefault, func(*Task) {})
	tk.Resume() // wake-up arrives before the task ever parks
	done := make(chan struct{})
	go func() {
		tk.Park()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Park never returned despite a queued Resume")
	}
}

func TestResumeIsIdempotent(t *testing.T) {
	tk := New("t3", PriorityDefault, func(*Task) {})
	tk.Resume()
	tk.Resume() // second resume must not block or panic
	done := make(chan struct{})
	go func() {
		tk.Park()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Park never returned")
	}
}

func TestCancelFlag(t *testing.T) {
	tk := New("t4", PriorityDefault, func(*Task) {})
	if tk.TestCancel() {
		t.Fatal("expected cancel flag unset initially")
	}
	tk.Cancel()
	if !tk.TestCancel() {
		t.Fatal("expected cancel flag set after Cancel")
	}
}
