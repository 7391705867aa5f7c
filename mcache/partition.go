// Package mcache implements spec.md §4.5's memcache partition and hash
// table: a power-of-two bucket array per partition with singly linked
// entry chains, incremental striding expansion, and CLOCK eviction.
//
// Grounded on CaloriaDigital-hub-IMCS/internal/storage/cache/shard.go
// (per-shard locking, lazy lookup, atomic bookkeeping fields) combined
// with codewanderer42820-evm_triarb/localidx/hash.go's fixed-capacity,
// power-of-two, open-addressed table shape — adapted here from
// Robin-Hood open addressing to singly linked per-bucket chains, since
// entries need stable addresses for outstanding references and
// in-place splitting during a stride step.
package mcache

import (
	"hash/fnv"
	"sync"
)

const (
	// initialBuckets is a partition's starting bucket-array size
	// (power of two), small enough that most workloads stride at
	// least once but large enough to avoid a flurry of strides on an
	// empty table.
	initialBuckets = 64
	// stride is spec.md §4.5.1's STRIDE: the number of buckets
	// re-bucketized per incremental expansion step.
	stride = 64
)

// hashKey computes spec.md §4.5's FNV-1a 32-bit hash of a key.
func hashKey(key []byte) uint32 {
	h := fnv.New32a()
	h.Write(key)
	return h.Sum32()
}

// Partition is spec.md's tpart: one shard of the memcache table. Only
// the delegate strategy in package action pins it to an owning core;
// under the locking and combine strategies any core's task acts on it.
type Partition struct {
	mu sync.Mutex

	buckets []*Entry // over-reserved to nbucketsMax; logically only [0:size) is live
	size    uint32   // current mask+1, a power of two
	used    uint32   // number of buckets already split under the current size
	mask    uint32

	nbucketsMax uint32
	nentries    uint32
	partBits    uint32 // bits of a key's hash consumed selecting this partition

	striding bool

	volume    int64
	volumeMax int64
	reserve   int64

	evicting bool
	clockPos uint32 // next bucket index the CLOCK hand will visit

	nextStamp uint64
}

// NewPartition creates a partition with bucket array capacity reserved
// up to max (spec.md's "contiguous, over-reserved array" — adapted
// from the original's mmap PROT_NONE reservation trick to a single Go
// slice allocated at max size up front, since Go offers no cheap
// reserve-without-commit primitive and max is small enough in practice
// that the trick buys nothing here).
func NewPartition(max uint32, volumeMax, reserve int64, partBits uint32) *Partition {
	if max < initialBuckets {
		max = initialBuckets
	}
	p := &Partition{
		buckets:     make([]*Entry, max),
		size:        initialBuckets,
		used:        initialBuckets,
		mask:        initialBuckets - 1,
		nbucketsMax: max,
		volumeMax:   volumeMax,
		reserve:     reserve,
		nextStamp:   1,
		partBits:    partBits,
	}
	return p
}

// bucketIndex implements spec.md §4.5's index computation: the high
// bits of the hash select a bucket under the current mask, falling
// back to the half-sized mask when the selected index hasn't been
// split into existence yet (used < size during a stride).
func (p *Partition) bucketIndex(hHigh uint32) uint32 {
	idx := hHigh & p.mask
	if idx >= p.used {
		idx = hHigh & (p.mask >> 1)
	}
	return idx
}

// partBits is how many low bits of a full hash select the owning
// partition, fixed by the table's partition count.
func splitHash(h uint32, partBits uint32) (part, high uint32) {
	partMask := uint32(1)<<partBits - 1
	return h & partMask, h >> partBits
}

func (p *Partition) lockFree() func() { p.mu.Lock(); return p.mu.Unlock }

func (p *Partition) findLocked(key []byte, hHigh uint32) (**Entry, *Entry) {
	idx := p.bucketIndex(hHigh)
	slot := &p.buckets[idx]
	for e := *slot; e != nil; e = e.next {
		if string(e.Key) == string(key) {
			return slot, e
		}
		slot = &e.next
	}
	return slot, nil
}

// Lookup is spec.md §4.5.3's `lookup` action: returns the matching
// entry reffed, or nil. Sets the CLOCK used-recently bit on hit.
func (p *Partition) Lookup(key []byte, hHigh uint32) *Entry {
	defer p.lockFree()()
	_, e := p.findLocked(key, hHigh)
	if e == nil {
		return nil
	}
	e.markUsed()
	e.ref()
	return e
}

// Finish is spec.md's `finish` action: releases a reference obtained
// from Lookup (or another action's old_entry output) once the caller
// no longer holds it.
func (p *Partition) Finish(e *Entry) {
	if e == nil {
		return
	}
	if e.unref() {
		// nothing else references it and it is no longer reachable
		// from any bucket chain; nothing further to do but let it be
		// collected.
	}
}

// Delete is spec.md's `delete` action: removes the matching entry and
// returns it (reffed, for the caller to Finish), or nil if absent.
func (p *Partition) Delete(key []byte, hHigh uint32) *Entry {
	defer p.lockFree()()
	slot, e := p.findLocked(key, hHigh)
	if e == nil {
		return nil
	}
	*slot = e.next
	e.next = nil
	p.nentries--
	p.volume -= e.size()
	return e
}

// Create is spec.md's `create` action: allocates a detached entry the
// caller fills before Insert/Update/Upsert. stamp is assigned fresh
// here so CAS values are monotonic regardless of which strategy calls
// Create.
func (p *Partition) Create(key, value []byte, flags, exptime uint32) *Entry {
	p.mu.Lock()
	stamp := p.nextStamp
	p.nextStamp++
	p.mu.Unlock()
	return newEntry(key, value, flags, exptime, stamp)
}

// Cancel is spec.md's `cancel` action: discards a created-but-never-inserted
// entry.
func (p *Partition) Cancel(e *Entry) { _ = e }

// Insert is spec.md's `insert` action: inserts e, assuming no existing
// match for its key. Returns whether a stride should be scheduled.
func (p *Partition) Insert(e *Entry, hHigh uint32) (needsStride bool) {
	p.mu.Lock()
	idx := p.bucketIndex(hHigh)
	e.next = p.buckets[idx]
	p.buckets[idx] = e
	p.nentries++
	p.volume += e.size()
	needsStride = !p.striding && p.nentries > 2*p.size && p.size < p.nbucketsMax
	if needsStride {
		p.striding = true
	}
	p.mu.Unlock()
	return needsStride
}

// UpdateResult reports what Update/Upsert actually did, spec.md's
// `entry_match` output field.
type UpdateResult int

const (
	NoMatch UpdateResult = iota
	Matched
	StampMismatch
)

// Update is spec.md's `update` action: replaces an existing entry
// matching key with e. If matchStamp, the replacement only happens
// when the existing entry's Stamp equals stamp; the caller learns
// which case occurred via the returned UpdateResult, and old (if any,
// reffed) for policy-driven unreffing by the action-plane caller.
func (p *Partition) Update(e *Entry, hHigh uint32, matchStamp bool, stamp uint64) (UpdateResult, *Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot, old := p.findLocked(e.Key, hHigh)
	if old == nil {
		return NoMatch, nil
	}
	if matchStamp && old.Stamp != stamp {
		old.ref()
		return StampMismatch, old
	}
	e.next = old.next
	*slot = e
	old.next = nil
	p.volume += e.size() - old.size()
	old.ref()
	return Matched, old
}

// Upsert is spec.md's `upsert` action: inserts e if no match exists,
// else behaves like Update with matchStamp=false.
func (p *Partition) Upsert(e *Entry, hHigh uint32) (inserted bool, old *Entry, needsStride bool) {
	p.mu.Lock()
	slot, existing := p.findLocked(e.Key, hHigh)
	if existing == nil {
		idx := p.bucketIndex(hHigh)
		e.next = p.buckets[idx]
		p.buckets[idx] = e
		p.nentries++
		p.volume += e.size()
		needsStride = !p.striding && p.nentries > 2*p.size && p.size < p.nbucketsMax
		if needsStride {
			p.striding = true
		}
		p.mu.Unlock()
		return true, nil, needsStride
	}
	e.next = existing.next
	*slot = e
	existing.next = nil
	p.volume += e.size() - existing.size()
	existing.ref()
	p.mu.Unlock()
	return false, existing, false
}

// NeedsEviction reports whether volume has crossed the high-water mark
// spec.md §4.5.2 defines, and whether eviction is already in flight.
func (p *Partition) NeedsEviction() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.evicting {
		return false
	}
	if p.volume+p.reserve > p.volumeMax {
		p.evicting = true
		return true
	}
	return false
}

// PartBits reports how many low bits of a key's hash select this
// partition, fixed at construction by the owning Table.
func (p *Partition) PartBits() uint32 { return p.partBits }

// Stats reports the partition's current logical entry count, bucket
// count and data volume, for stats output.
func (p *Partition) Stats() (entries uint32, buckets uint32, volume int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nentries, p.size, p.volume
}

// Flush is spec.md's `flush` background action: discards every entry
// regardless of exptime, matching the "expiration is inert except
// flush_all" Open Question decision.
func (p *Partition) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.buckets[:p.size] {
		p.buckets[i] = nil
	}
	p.nentries = 0
	p.volume = 0
}
