package mcache

// EvictRoutine is spec.md §4.5.2's CLOCK eviction step, run as work on
// the partition's owning core: sweep forward from the clock hand,
// clearing used-recently bits on entries that have it set and removing
// the first entry found with it already clear. Returns whether volume
// is still over volume_max-reserve and eviction must continue.
//
// Grounded on CaloriaDigital-hub-IMCS's shard eviction/clock sampling
// shape, adapted from random sampling to the spec's deterministic
// rotating hand over bucket order.
func (p *Partition) EvictRoutine() (reschedule bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.volume+p.reserve <= p.volumeMax {
		p.evicting = false
		return false
	}

	scanned := uint32(0)
	for scanned < p.size {
		idx := p.clockPos
		p.clockPos = (p.clockPos + 1) % p.size
		scanned++

		slot := &p.buckets[idx]
		removed := false
		for e := *slot; e != nil; e = *slot {
			if e.clearUsed() {
				slot = &e.next
				continue
			}
			*slot = e.next
			e.next = nil
			p.nentries--
			p.volume -= e.size()
			e.unref()
			removed = true
			break
		}
		if !removed {
			continue
		}

		if p.volume+p.reserve <= p.volumeMax {
			p.evicting = false
			return false
		}
		return true
	}
	return true
}
