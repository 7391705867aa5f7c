package ring

import (
	"sync/atomic"
	"unsafe"
)

// mpmcSlot carries a payload plus the Giacomoni/Scogland lock counter:
// producers CAS the tail then publish by setting lock to tail+1;
// consumers CAS the head then release by setting lock to head+capacity,
// the tail value the producer of the slot's next lap waits for.
type mpmcSlot struct {
	ptr  unsafe.Pointer
	lock uint64
}

// MPMC is a bounded multi-producer/multi-consumer ring, for sites where
// more than one core enqueues into the same ring concurrently. No other
// package in this module uses it; the combine action strategy keeps its
// own linked queue.
type MPMC struct {
	_    [64]byte
	head uint64
	_    [64]byte
	tail uint64
	_    [64]byte
	mask uint64
	cap  uint64
	buf  []mpmcSlot
}

// NewMPMC allocates an MPMC ring; size must be a power of two.
func NewMPMC(size int) *MPMC {
	if size <= 0 || size&(size-1) != 0 {
		panic("ring: size must be >0 and a power of two")
	}
	r := &MPMC{
		mask: uint64(size - 1),
		cap:  uint64(size),
		buf:  make([]mpmcSlot, size),
	}
	for i := range r.buf {
		r.buf[i].lock = uint64(i)
	}
	return r
}

// Push attempts a single non-blocking enqueue, returning false if full.
func (r *MPMC) Push(p unsafe.Pointer) bool {
	for {
		tail := atomic.LoadUint64(&r.tail)
		slot := &r.buf[tail&r.mask]
		lock := atomic.LoadUint64(&slot.lock)
		if lock != tail {
			if tail-atomic.LoadUint64(&r.head) >= r.cap {
				return false
			}
			continue
		}
		if atomic.CompareAndSwapUint64(&r.tail, tail, tail+1) {
			slot.ptr = p
			atomic.StoreUint64(&slot.lock, tail+1)
			return true
		}
	}
}

// PushBackoff spins with cpuRelax backoff until the enqueue succeeds, for
// "enqueue must succeed" call sites (spec.md §4.2).
func (r *MPMC) PushBackoff(p unsafe.Pointer) {
	for !r.Push(p) {
		cpuRelax()
	}
}

// Pop attempts a single non-blocking dequeue, returning nil if empty.
func (r *MPMC) Pop() unsafe.Pointer {
	for {
		head := atomic.LoadUint64(&r.head)
		slot := &r.buf[head&r.mask]
		lock := atomic.LoadUint64(&slot.lock)
		if lock != head+1 {
			if lock == head {
				return nil
			}
			continue
		}
		if atomic.CompareAndSwapUint64(&r.head, head, head+1) {
			p := slot.ptr
			atomic.StoreUint64(&slot.lock, head+r.cap)
			return p
		}
	}
}

// Cap reports the ring's fixed capacity.
func (r *MPMC) Cap() int {
	return int(r.cap)
}
