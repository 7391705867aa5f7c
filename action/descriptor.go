// Package action implements spec.md §4.5.3's action plane: a fixed set
// of operations against a memcache partition's entries, phrased as a
// descriptor struct plus three pluggable synchronization strategies
// (locking, delegate, combine) that decide how the operation actually
// reaches the partition.
//
// Grounded on original_source/src/memcache/action.h's mc_action struct
// and its action-kind enum (lookup/finish/delete/create/cancel/insert/
// update/upsert/stride/evict/flush), with the low-level dispatch kept
// in package mcache (Partition's own methods already serialize with an
// internal mutex, playing the role of action.h's `*_low` functions).
package action

import "github.com/mainmemory/mainmemory/mcache"

// Kind is spec.md's action-kind tag, mirroring action.h's mc_action_t.
type Kind int

const (
	Lookup Kind = iota
	Finish
	Delete
	Create
	Cancel
	Insert
	Update
	Upsert
	Stride
	Evict
	Flush
)

// Descriptor is spec.md §4.5.3's action descriptor: input fields the
// caller fills, plus output fields the executed action populates.
type Descriptor struct {
	Kind Kind

	Key  []byte
	Hash uint32 // full FNV-1a hash of Key

	Part *mcache.Partition

	NewEntry *mcache.Entry
	OldEntry *mcache.Entry

	Stamp uint64

	MatchStamp      bool
	RefOldOnFailure bool
	RefNewOnSuccess bool
	EntryMatch      mcache.UpdateResult

	// CreateValue/CreateFlags/CreateExptime carry Create's inputs,
	// since mcache.Partition.Create takes them positionally.
	CreateValue   []byte
	CreateFlags   uint32
	CreateExptime uint32

	// NeedsStride/NeedsEvict report, after Insert/Upsert/Stride/Evict,
	// whether the caller (normally the owning core's dealer) should
	// schedule another background pass — Execute itself never reaches
	// across cores to do this.
	NeedsStride bool
	NeedsEvict  bool
}

// HighBits returns the hash bits d.Part's bucket index is derived
// from, under d.Part's configured partition-bit width.
func (d *Descriptor) HighBits() uint32 { return d.Hash >> d.Part.PartBits() }

// Execute runs the action against d.Part directly, with no
// synchronization of its own — the caller is responsible for ensuring
// it is safe to call (already holding the partition's strategy-level
// lock, running on the partition's owning core, or executing as the
// winning combiner batch member). This is spec.md's "action's
// low-level implementation".
func Execute(d *Descriptor) {
	switch d.Kind {
	case Lookup:
		d.OldEntry = d.Part.Lookup(d.Key, d.HighBits())
	case Finish:
		d.Part.Finish(d.OldEntry)
	case Delete:
		d.OldEntry = d.Part.Delete(d.Key, d.HighBits())
	case Create:
		d.NewEntry = d.Part.Create(d.Key, d.CreateValue, d.CreateFlags, d.CreateExptime)
		d.Stamp = d.NewEntry.Stamp
	case Cancel:
		d.Part.Cancel(d.NewEntry)
	case Insert:
		d.NeedsStride = d.Part.Insert(d.NewEntry, d.HighBits())
	case Update:
		result, old := d.Part.Update(d.NewEntry, d.HighBits(), d.MatchStamp, d.Stamp)
		d.EntryMatch = result
		d.OldEntry = old
		applyReferencePolicy(d, result == mcache.Matched)
	case Upsert:
		inserted, old, needsStride := d.Part.Upsert(d.NewEntry, d.HighBits())
		d.OldEntry = old
		d.NeedsStride = needsStride
		if inserted {
			d.EntryMatch = mcache.NoMatch
		} else {
			d.EntryMatch = mcache.Matched
			applyReferencePolicy(d, true)
		}
	case Stride:
		d.NeedsStride = d.Part.StrideRoutine()
	case Evict:
		d.NeedsEvict = d.Part.EvictRoutine()
	case Flush:
		d.Part.Flush()
	}
}

// applyReferencePolicy implements action.h's ref_old_on_failure /
// ref_new_on_success flags: by default Update/Upsert drop their
// reference to OldEntry (Finish it and clear the field) before
// returning; RefNewOnSuccess / RefOldOnFailure let the caller instead
// keep that reffed OldEntry on a successful / failed outcome, copy out
// what it needs, and Finish it itself.
func applyReferencePolicy(d *Descriptor, success bool) {
	if d.OldEntry == nil {
		return
	}
	keep := (success && d.RefNewOnSuccess) || (!success && d.RefOldOnFailure)
	if !keep {
		d.Part.Finish(d.OldEntry)
		d.OldEntry = nil
	}
}
