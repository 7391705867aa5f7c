package mcache

// StrideRoutine is spec.md §4.5.1's incremental expansion step, run as
// work on the partition's owning core: one call performs, at most,
// doubling the bucket array (if the previous round fully finished) and
// re-bucketizing up to `stride` buckets of the half still mid-split.
// It reports whether it must be rescheduled.
//
// Grounded on original_source/src/memcache/table.c's
// mc_table_stride_routine shape, with the corrected condition spec.md
// §9 Open Question (3) calls for: double when `used == size`, not the
// source's self-referential `used == used`.
func (p *Partition) StrideRoutine() (reschedule bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.used == p.size {
		newSize := p.size * 2
		if newSize > p.nbucketsMax {
			newSize = p.nbucketsMax
		}
		p.size = newSize
		p.mask = newSize - 1
	}

	half := p.size / 2
	source := p.used - half
	end := source + stride
	if end > half {
		end = half
	}

	newMask := p.mask
	for b := source; b < end; b++ {
		target := b + half
		var keepHead, moveHead *Entry
		for e := p.buckets[b]; e != nil; {
			next := e.next
			if (hashKey(e.Key)>>p.partBits)&newMask == target {
				e.next = moveHead
				moveHead = e
			} else {
				e.next = keepHead
				keepHead = e
			}
			e = next
		}
		p.buckets[b] = keepHead
		p.buckets[target] = moveHead
	}
	p.used += end - source

	if p.used < p.size {
		return true
	}
	if p.nentries > 2*p.size && p.size < p.nbucketsMax {
		return true
	}
	p.striding = false
	return false
}
