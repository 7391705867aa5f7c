package ring

// SetAffinity pins the calling OS thread to logical CPU cpu (0-based),
// best-effort. Exported so core.Core's dispatcher goroutine — which
// must run LockOSThread'd on its assigned CPU per spec.md's Core
// data-model entry — can call it directly.
func SetAffinity(cpu int) { setAffinity(cpu) }
