package core

// Arena is the per-core "local" allocator spec.md §5 and §6 describe as
// one of three arenas (local/shared/global), owner-only and never
// touched by another core. Go's garbage collector makes an actual
// bump/free-list allocator unnecessary; Arena narrows to what the rest
// of the runtime actually needs from it — reusing same-shaped objects
// across a hot loop without returning them to the garbage collector on
// every cycle. Each Core's own Arena is sized for package mmlog's log
// chunks (see LogChunkSize); a chunk Put by Tick's Chunks-ring drain
// loop is later handed back out by Get to a fresh mmlog.Sink write.
type Arena struct {
	free []any
	new  func() any
}

// NewArena creates an arena whose Get method falls back to newFn when
// the free list is empty.
func NewArena(newFn func() any) *Arena {
	return &Arena{new: newFn}
}

// Get returns a reused object or a freshly constructed one.
func (a *Arena) Get() any {
	if n := len(a.free); n > 0 {
		v := a.free[n-1]
		a.free = a.free[:n-1]
		return v
	}
	return a.new()
}

// Put returns an object to the arena for reuse.
func (a *Arena) Put(v any) {
	a.free = append(a.free, v)
}
