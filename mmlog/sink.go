package mmlog

import (
	"unsafe"

	"github.com/mainmemory/mainmemory/core"
)

// Sink is spec.md §6's Logger external collaborator taken literally:
// "an unstructured byte sink taking pre-formatted chunks; the core
// reclaims its chunks on the originating core." Hot-path code that
// must not build a zerolog event (e.g. a would-be per-command trace)
// instead appends already-formatted bytes here; the chunk is flushed
// to the backing Logger and its array handed back to the owning
// Core's Arena once full, via the same Chunks ring Core.Tick already
// drains every dispatch pass.
//
// Grounded on original_source/src/log.c's per-thread pending-chunk
// queue (mm_log_str appends to the tail chunk, allocating a fresh one
// from the calling core's arena when it fills).
type Sink struct {
	core   *core.Core
	logger *Logger
	prefix string
	cur    *[]byte
}

// NewSink returns a Sink that flushes accumulated chunks to logger as
// single Info records tagged with prefix (typically the originating
// subsystem: "stride", "evict", "conn").
func NewSink(c *core.Core, logger *Logger, prefix string) *Sink {
	return &Sink{core: c, logger: logger, prefix: prefix}
}

func (s *Sink) ensure() *[]byte {
	if s.cur == nil {
		v := s.core.Arena.Get().(*[]byte)
		*v = (*v)[:0]
		s.cur = v
	}
	return s.cur
}

// Write appends p to the sink's current chunk, flushing (and starting
// a fresh chunk from the core's arena) whenever the current one fills.
func (s *Sink) Write(p []byte) {
	for len(p) > 0 {
		cur := s.ensure()
		avail := cap(*cur) - len(*cur)
		n := len(p)
		if n > avail {
			n = avail
		}
		*cur = append(*cur, p[:n]...)
		p = p[n:]
		if len(*cur) == cap(*cur) {
			s.Flush()
		}
	}
}

// Flush writes out the pending chunk, if any, then submits its
// backing array back to the owning core's Chunks ring for reclamation
// — spec.md §3's "process-wide chunk free list for a core is drained
// only by that core", exercised here even though Sink itself always
// runs on that same core, matching the ring's general contract rather
// than assuming a same-core shortcut.
func (s *Sink) Flush() {
	if s.cur == nil {
		return
	}
	cur := s.cur
	s.cur = nil
	if len(*cur) == 0 {
		s.core.SubmitChunk(unsafe.Pointer(cur))
		return
	}
	s.logger.Info(s.prefix, F("chunk", string(*cur)))
	s.core.SubmitChunk(unsafe.Pointer(cur))
}
