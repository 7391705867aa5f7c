// Package cpupause provides a spin-wait relaxation hint used by the ring
// buffers and the scheduler's busy-wait sites.
//
// The teacher (ring24/relax_*.go) emits the PAUSE/YIELD instruction directly
// via cgo-wrapped inline assembly. The assembly route is exactly the class of
// "arch-specific assembly stub" spec.md §1 declares an external collaborator
// and out of scope for this rewrite, and no third-party package in the
// retrieval pack offers a portable pause intrinsic without assembly of its
// own — so this is one of the few spots that stays on the standard library,
// trading a few nanoseconds of pipeline hint for a cgo-free build.
package cpupause

import "runtime"

// spinBudget mirrors ring24's spinBudget: the number of failed polls a
// caller is expected to absorb before escalating from a tight spin to an
// OS-scheduler yield.
const spinBudget = 224

// Relax hints to the runtime that the calling goroutine is busy-waiting.
// Callers should call it once per failed poll; after spinBudget misses it
// escalates to runtime.Gosched so the OS thread isn't pinned uselessly.
func Relax(miss int) {
	if miss >= spinBudget {
		runtime.Gosched()
		return
	}
	// cheap compiler-visible busy work; prevents the loop from being folded
	// away while still being far cheaper than a scheduler yield.
	for i := 0; i < 8; i++ {
	}
}
