package mcache

import "math/bits"

// Table is spec.md §4.5's memcache hash table as a whole: a fixed
// power-of-two number of independently striding/evicting partitions,
// each pinned to an owning core when package action's delegate
// strategy is in use.
type Table struct {
	Partitions []*Partition
	partMask   uint32
	partBits   uint32
}

// NewTable creates a table with partitionCount partitions (must be a
// power of two, per spec.md §4.5), each bounded by nbucketsMax buckets
// and volumeMax bytes with the given eviction reserve headroom.
func NewTable(partitionCount int, nbucketsMax uint32, volumeMax, reserve int64) *Table {
	if partitionCount < 1 {
		partitionCount = 1
	}
	partBits := uint32(bits.Len32(uint32(partitionCount) - 1))
	if partitionCount == 1 {
		partBits = 0
	}
	t := &Table{
		partMask: uint32(partitionCount) - 1,
		partBits: partBits,
	}
	t.Partitions = make([]*Partition, partitionCount)
	for i := range t.Partitions {
		t.Partitions[i] = NewPartition(nbucketsMax, volumeMax, reserve, partBits)
	}
	return t
}

// Route computes spec.md §4.5's `part = h & part_mask` split for key,
// returning the owning partition, its index, and the key's full
// FNV-1a hash — callers that need the partition-local bucket index
// (spec.md's `h' = h >> part_bits`) get it from
// Partition.PartBits()-shifting the returned hash themselves, or, via
// package action's Descriptor, by storing the full hash and letting
// Descriptor.HighBits() do that shift.
func (t *Table) Route(key []byte) (part *Partition, partIndex int, hash uint32) {
	h := hashKey(key)
	pi := h & t.partMask
	return t.Partitions[pi], int(pi), h
}

// Hash exposes the table's key hash function directly, for callers
// (package action) building a Descriptor without going through Route.
func (t *Table) Hash(key []byte) uint32 { return hashKey(key) }

// PartitionCount reports the table's fixed partition count.
func (t *Table) PartitionCount() int { return len(t.Partitions) }
