//go:build !linux || tinygo

package ring

// setAffinity is a no-op on platforms without sched_setaffinity(2) (or
// under TinyGo). The per-core dispatcher still runs correctly, just
// without a pinning guarantee.
func setAffinity(cpu int) {}
