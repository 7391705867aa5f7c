package timer

import "testing"

func TestAdvanceFiresInExpiryOrder(t *testing.T) {
	w := New(1000)
	var order []int
	fire := func(tag int) func(uintptr) {
		return func(uintptr) { order = append(order, tag) }
	}

	w.Add(1005, 0, fire(1), 0)
	w.Add(1001, 0, fire(2), 0)
	w.Add(1003, 0, fire(3), 0)

	if n := w.Advance(1004); n != 2 {
		t.Fatalf("expected 2 timers fired by 1004, got %d", n)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 3 {
		t.Fatalf("expected fire order [2 3], got %v", order)
	}

	if n := w.Advance(1005); n != 1 {
		t.Fatalf("expected 1 timer fired by 1005, got %d", n)
	}
	if len(order) != 3 || order[2] != 1 {
		t.Fatalf("expected fire order [2 3 1], got %v", order)
	}
	if w.Size() != 0 {
		t.Fatalf("expected empty wheel, got size %d", w.Size())
	}
}

func TestAdvanceIsNoOpBeforeDeadline(t *testing.T) {
	w := New(0)
	fired := 0
	w.Add(500, 0, func(uintptr) { fired++ }, 0)

	if n := w.Advance(100); n != 0 {
		t.Fatalf("expected 0 fired before deadline, got %d", n)
	}
	if fired != 0 {
		t.Fatalf("routine ran before deadline")
	}
	if n := w.Advance(500); n != 1 {
		t.Fatalf("expected 1 fired at deadline, got %d", n)
	}
}

func TestPeriodicTimerReArms(t *testing.T) {
	w := New(0)
	fired := 0
	w.Add(100, 50, func(uintptr) { fired++ }, 0)

	if n := w.Advance(100); n != 1 || fired != 1 {
		t.Fatalf("expected first fire, got n=%d fired=%d", n, fired)
	}
	if w.Size() != 1 {
		t.Fatalf("expected periodic timer still pending, size=%d", w.Size())
	}
	next, ok := w.NextDeadline()
	if !ok || next != 150 {
		t.Fatalf("expected next deadline 150, got %d ok=%v", next, ok)
	}
	if n := w.Advance(150); n != 1 || fired != 2 {
		t.Fatalf("expected second fire, got n=%d fired=%d", n, fired)
	}
}

func TestCancelRemovesPendingTimer(t *testing.T) {
	w := New(0)
	fired := false
	h := w.Add(200, 0, func(uintptr) { fired = true }, 0)
	w.Cancel(h)

	if w.Size() != 0 {
		t.Fatalf("expected size 0 after cancel, got %d", w.Size())
	}
	if n := w.Advance(300); n != 0 {
		t.Fatalf("expected 0 fired after cancel, got %d", n)
	}
	if fired {
		t.Fatal("cancelled timer fired")
	}
}

func TestOverflowEntryFiresAfterWindowSlides(t *testing.T) {
	w := New(0)
	fired := false
	w.Add(bucketCount+10, 0, func(uintptr) { fired = true }, 0)

	if n := w.Advance(bucketCount / 2); n != 0 {
		t.Fatalf("expected 0 fired mid-window, got %d", n)
	}
	if fired {
		t.Fatal("overflow timer fired too early")
	}

	if n := w.Advance(bucketCount + 10); n != 1 {
		t.Fatalf("expected overflow timer to fire once window slides, got %d", n)
	}
	if !fired {
		t.Fatal("overflow timer never fired")
	}
}

func TestNextDeadlinePrefersEarliestAcrossWindowAndOverflow(t *testing.T) {
	w := New(0)
	w.Add(bucketCount+500, 0, func(uintptr) {}, 0)
	w.Add(42, 0, func(uintptr) {}, 0)

	next, ok := w.NextDeadline()
	if !ok || next != 42 {
		t.Fatalf("expected earliest deadline 42, got %d ok=%v", next, ok)
	}
}
