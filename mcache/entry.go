package mcache

import "sync/atomic"

// Entry is spec.md §3's memcache entry: a key/value pair plus the
// bookkeeping fields the partition's actions and the CLOCK evictor
// need. Entries are reference-counted rather than owned by a single
// pointer, since a lookup result and the bucket chain can both hold a
// live reference at once (spec.md §8's refcount invariant).
//
// Grounded on CaloriaDigital-hub-IMCS/internal/storage/cache/shard.go's
// Item (key/value/expiry/heap-index fields), adapted from a TTL-heap
// entry into the bucket-chain + CLOCK-bit shape spec.md §4.5 describes.
type Entry struct {
	Key   []byte
	Value []byte
	Flags uint32

	// Exptime records a requested expiration time in epoch seconds;
	// per spec.md §9 Open Question (1), it is stored but never
	// consulted to expire an entry on its own — only flush_all acts
	// on it, by discarding everything regardless of this field.
	Exptime uint32

	// Stamp is the entry's CAS value: a per-partition monotonically
	// increasing counter assigned fresh at creation (spec.md §6).
	Stamp uint64

	next *Entry // next entry in this bucket's singly linked chain

	refcount int32

	// usedRecently is CLOCK eviction's second-chance bit (spec.md
	// §4.5.2), set on every lookup hit and cleared by one clock-hand
	// sweep before the entry becomes eligible for removal.
	usedRecently atomic.Bool
}

func newEntry(key, value []byte, flags, exptime uint32, stamp uint64) *Entry {
	return &Entry{
		Key:      key,
		Value:    value,
		Flags:    flags,
		Exptime:  exptime,
		Stamp:    stamp,
		refcount: 1,
	}
}

// size is the entry's contribution to a partition's tracked volume:
// key and value bytes plus a fixed per-entry overhead, used by the
// CLOCK evictor's volume_max/reserve accounting (spec.md §4.5.2).
func (e *Entry) size() int64 {
	const overhead = 64
	return int64(len(e.Key)) + int64(len(e.Value)) + overhead
}

func (e *Entry) ref()   { atomic.AddInt32(&e.refcount, 1) }
func (e *Entry) unref() bool {
	return atomic.AddInt32(&e.refcount, -1) == 0
}

func (e *Entry) markUsed()      { e.usedRecently.Store(true) }
func (e *Entry) clearUsed() bool { return e.usedRecently.CompareAndSwap(true, false) }
