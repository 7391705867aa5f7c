package core

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/mainmemory/mainmemory/cpupause"
	"github.com/mainmemory/mainmemory/ring"
	"github.com/mainmemory/mainmemory/sched"
	"github.com/mainmemory/mainmemory/task"
	"github.com/mainmemory/mainmemory/timer"
)

// inboxRingSize, schedRingSize, and chunksRingSize are the fixed
// power-of-two capacities for the three cross-core SPSC rings spec.md
// §4.2 attaches to every Core.
const (
	inboxRingSize  = 4096
	schedRingSize  = 4096
	chunksRingSize = 1024
)

// LogChunkSize is a log chunk's backing array capacity, grounded on
// original_source/src/log.c's MM_LOG_CHUNK_SIZE (2000, rounded up here
// to a friendlier allocation size). Package mmlog's Sink is this
// Arena's only client: it Gets a chunk to accumulate pre-formatted log
// bytes into and, once full or explicitly flushed, hands the backing
// array to SubmitChunk so it comes back through this same core's
// Chunks ring and Tick drain loop for reuse — spec.md §3's "chunk free
// list for a core is drained only by that core".
const LogChunkSize = 2048

// WorkItem is the payload carried across the inbox ring: a routine to
// run on this core's behalf, plus the argument word spec.md §3's Work
// item entity describes.
type WorkItem struct {
	Routine func(arg uintptr)
	Arg     uintptr
}

// Core owns one OS thread's worth of cooperative scheduling state:
// spec.md §3's Core entity. Exactly one goroutine — the one running
// Run — touches the run queue, timer wheel, wait-entry cache, and
// arena; other cores reach it only through the three SPSC rings.
type Core struct {
	ID int

	Dispatcher *sched.Dispatcher
	Timer      *timer.Wheel
	Arena      *Arena
	Clock      Clock

	Inbox  *ring.Ring // WorkItem pointers submitted from other cores
	Sched  *ring.Ring // tasks to make runnable, submitted from other cores
	Chunks *ring.Ring // freed chunks returning to the core that allocated them

	// nowMonotonic/nowRealtime cache one Clock reading per dispatch
	// tick, per spec.md §3's Core "current time" cache.
	nowMonotonic int64
	nowRealtime  int64

	stop atomic.Bool

	// cond/mu back a secondary core's timed idle sleep (spec.md §4.3's
	// dealer wait path); the primary core instead blocks in its event
	// backend and is woken by the self-pipe.
	mu   sync.Mutex
	cond *sync.Cond

	localQueue []WorkItem // work accepted off Inbox, awaiting a worker
	liveWorker int
	maxWorkers int

	onIdle   func(timeoutMs int) // primary core's event-backend poll hook
	wakeHook func()             // primary core's self-pipe byte-write hook
}

// New creates a core with its own dispatcher, timer wheel, and rings.
// maxWorkers bounds the number of concurrently live worker tasks
// (spec.md §6's "max workers per core" knob).
func New(id int, clock Clock, maxWorkers int) *Core {
	now := clock.MonotonicUs()
	c := &Core{
		ID:         id,
		Dispatcher: sched.New(),
		Timer:      timer.New(now),
		Arena:      NewArena(func() any { b := make([]byte, 0, LogChunkSize); return &b }),
		Clock:      clock,
		Inbox:      ring.New(inboxRingSize),
		Sched:      ring.New(schedRingSize),
		Chunks:     ring.New(chunksRingSize),
		maxWorkers: maxWorkers,
	}
	c.cond = sync.NewCond(&c.mu)
	c.nowMonotonic = now
	c.nowRealtime = clock.RealtimeUs()
	return c
}

// NowMonotonicUs returns the cached monotonic time, refreshed once per
// dispatch tick by Tick, per spec.md §4.1.2.
func (c *Core) NowMonotonicUs() int64 { return c.nowMonotonic }

// NowRealtimeUs returns the cached wall-clock time.
func (c *Core) NowRealtimeUs() int64 { return c.nowRealtime }

// SetIdleHook installs the function the dealer calls when it has no
// local work and the run queue is empty: the primary core's event
// backend Listen call, wrapped to accept a timeout in milliseconds.
func (c *Core) SetIdleHook(fn func(timeoutMs int)) { c.onIdle = fn }

// SetWakeHook installs the function Wake calls in addition to
// broadcasting the idle condition — the primary core's event backend
// self-pipe write, so a Listen call blocked in the event backend is
// interrupted the same way a secondary core's timed condition sleep is
// (spec.md §4.2's "wake-up of a sleeping target core").
func (c *Core) SetWakeHook(fn func()) { c.wakeHook = fn }

// Stop requests this core stop scheduling new work once its run queue
// drains, spec.md §3's per-core stop flag.
func (c *Core) Stop()         { c.stop.Store(true); c.Wake() }
func (c *Core) Stopped() bool { return c.stop.Load() }

// Wake breaks a secondary core out of its timed idle sleep; used by
// other cores after they enqueue work or a scheduling wakeup for this
// core (spec.md §4.2's "wake-up of a sleeping target core").
func (c *Core) Wake() {
	c.mu.Lock()
	c.cond.Broadcast()
	c.mu.Unlock()
	if c.wakeHook != nil {
		c.wakeHook()
	}
}

// SubmitWork enqueues item onto the inbox ring from another core
// (or this one); the caller retries with backoff on a full ring, per
// spec.md §4.2's producer-side contract.
func (c *Core) SubmitWork(item WorkItem) {
	p := &item
	for miss := 0; !c.Inbox.Push(unsafe.Pointer(p)); miss++ {
		// producer backoff: the Dealer drains the inbox every tick, so
		// a brief retry loop is bounded in practice.
		cpupause.Relax(miss)
	}
	c.Wake()
}

// SubmitSchedule posts t to be made runnable on this core from another
// core's goroutine; Dealer drains Sched into Dispatcher.RunTask.
func (c *Core) SubmitSchedule(t *task.Task) {
	for !c.Sched.Push(unsafe.Pointer(t)) {
	}
	c.Wake()
}

// SubmitChunk hands a log chunk (a *[]byte obtained from this core's
// Arena) back for reclamation on the core that allocated it,
// spec.md §3's "chunk free list is drained only by that core".
func (c *Core) SubmitChunk(p unsafe.Pointer) {
	for !c.Chunks.Push(p) {
	}
	c.Wake()
}

// Tick refreshes the cached clock, advances the timer wheel, and
// drains the three inbound rings. Called once per dealer pass.
func (c *Core) Tick() {
	c.nowMonotonic = c.Clock.MonotonicUs()
	c.nowRealtime = c.Clock.RealtimeUs()
	c.Timer.Advance(c.nowMonotonic)

	for {
		p := c.Inbox.Pop()
		if p == nil {
			break
		}
		item := (*WorkItem)(p)
		c.localQueue = append(c.localQueue, *item)
	}
	for {
		p := c.Sched.Pop()
		if p == nil {
			break
		}
		c.Dispatcher.RunTask((*task.Task)(p))
	}
	for {
		p := c.Chunks.Pop()
		if p == nil {
			break
		}
		c.Arena.Put((*[]byte)(p))
	}
}

// HasLocalWork reports whether work accepted off the inbox ring is
// waiting for a worker to pick it up.
func (c *Core) HasLocalWork() bool { return len(c.localQueue) > 0 }

// PopLocalWork removes and returns the oldest queued item.
func (c *Core) PopLocalWork() (WorkItem, bool) {
	if len(c.localQueue) == 0 {
		return WorkItem{}, false
	}
	item := c.localQueue[0]
	c.localQueue = c.localQueue[1:]
	return item, true
}

// PushLocalWork returns an item to the front of the local queue,
// used when master pops an item but the live-worker cap prevents
// spawning a worker for it this tick.
func (c *Core) PushLocalWork(item WorkItem) {
	c.localQueue = append([]WorkItem{item}, c.localQueue...)
}

// SpawnWorker reserves a live-worker slot, reporting false if the
// core is already at its configured maximum (spec.md §6's "max
// workers per core"). Slots are never released: a worker that runs
// out of local work parks instead of exiting, so the count tracks
// workers ever created, not workers currently busy.
func (c *Core) SpawnWorker() bool {
	if c.liveWorker >= c.maxWorkers {
		return false
	}
	c.liveWorker++
	return true
}

// IdleWaitTimeoutMs is how long the dealer waits between ticks when
// there is no local work, spec.md §4.3's "1-second timeout".
const IdleWaitTimeoutMs = 1000

// IdleSleep parks the calling goroutine (the dealer's own, which still
// holds the dispatcher's baton, so no other task on this core runs
// meanwhile) until woken or the timeout elapses, for a secondary core. The
// primary core instead calls onIdle, which blocks in the event
// backend.
func (c *Core) IdleSleep(timeout time.Duration) {
	if c.onIdle != nil {
		c.onIdle(int(timeout / time.Millisecond))
		return
	}
	c.mu.Lock()
	timer := time.AfterFunc(timeout, c.Wake)
	c.cond.Wait()
	timer.Stop()
	c.mu.Unlock()
}
