package core

import (
	"runtime"

	"github.com/mainmemory/mainmemory/ring"
)

// SetAffinity pins the calling OS thread to cpu, best-effort. Exposed
// so cmd/mainmemoryd doesn't need to import package ring directly just
// to pin the primary core's own dispatch goroutine before handing it
// to Run.
func SetAffinity(cpu int) { ring.SetAffinity(cpu) }

// Run is a Core's boot task: it locks the calling goroutine to its own
// OS thread, pins that thread to cpu, then drives the dispatcher until
// Step reports the run queue is empty — which only happens once both
// Master and Dealer have observed Stopped() and exited, since between
// them they otherwise keep at least one task runnable at all times
// (each re-enqueues itself via Yield every pass).
//
// Grounded on the LockOSThread+setAffinity wrapper pattern used to pin
// a dedicated consumer goroutine to a CPU, reused here for the
// per-core dispatcher goroutine the Core entity requires (one per CPU
// worker thread, created at startup).
func (c *Core) Run(cpu int) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	SetAffinity(cpu)

	for c.Dispatcher.Step() {
		c.Dispatcher.ReapDead()
	}
}
