package mcache

import "testing"

func TestInsertLookupDelete(t *testing.T) {
	p := NewPartition(1024, 1<<20, 0, 0)
	key := []byte("foo")
	h := hashKey(key) >> p.partBits

	e := p.Create(key, []byte("bar"), 0, 0)
	if needs := p.Insert(e, h); needs {
		t.Fatalf("unexpected stride trigger on first insert")
	}

	got := p.Lookup(key, h)
	if got == nil {
		t.Fatalf("expected lookup hit after insert")
	}
	if string(got.Value) != "bar" {
		t.Errorf("got value %q, want %q", got.Value, "bar")
	}
	p.Finish(got)

	removed := p.Delete(key, h)
	if removed == nil {
		t.Fatalf("expected delete to find the entry")
	}
	p.Finish(removed)

	if p.Lookup(key, h) != nil {
		t.Errorf("expected lookup miss after delete")
	}
}

func TestUpdateStampMismatch(t *testing.T) {
	p := NewPartition(1024, 1<<20, 0, 0)
	key := []byte("k")
	h := hashKey(key) >> p.partBits

	orig := p.Create(key, []byte("a"), 0, 0)
	p.Insert(orig, h)

	replacement := p.Create(key, []byte("b"), 0, 0)
	result, old := p.Update(replacement, h, true, orig.Stamp+1)
	if result != StampMismatch {
		t.Fatalf("expected stamp mismatch, got %v", result)
	}
	p.Finish(old)

	result, old = p.Update(replacement, h, true, orig.Stamp)
	if result != Matched {
		t.Fatalf("expected match with correct stamp, got %v", result)
	}
	p.Finish(old)

	got := p.Lookup(key, h)
	if string(got.Value) != "b" {
		t.Errorf("got value %q after update, want %q", got.Value, "b")
	}
	p.Finish(got)
}

func TestStrideExpandsAndPreservesLookups(t *testing.T) {
	p := NewPartition(1<<20, 1<<30, 0, 0)

	keys := make([][]byte, 0, 2000)
	for i := 0; i < 2000; i++ {
		k := []byte{byte(i), byte(i >> 8), byte(i >> 16)}
		keys = append(keys, k)
		h := hashKey(k) >> p.partBits
		e := p.Create(k, []byte("v"), 0, 0)
		needs := p.Insert(e, h)
		for needs {
			needs = p.StrideRoutine()
		}
	}

	for _, k := range keys {
		h := hashKey(k) >> p.partBits
		got := p.Lookup(k, h)
		if got == nil {
			t.Fatalf("lookup miss for key %v after striding expand", k)
		}
		p.Finish(got)
	}
}

func TestEvictRoutineReclaimsUnusedEntries(t *testing.T) {
	p := NewPartition(1024, 256, 0, 0)

	for i := 0; i < 10; i++ {
		k := []byte{byte(i)}
		h := hashKey(k) >> p.partBits
		e := p.Create(k, make([]byte, 16), 0, 0)
		p.Insert(e, h)
	}

	if !p.NeedsEviction() {
		t.Fatalf("expected eviction to be required once volume exceeds volumeMax")
	}
	for p.EvictRoutine() {
	}

	entries, _, volume := p.Stats()
	if volume > 256 {
		t.Errorf("volume %d still exceeds volumeMax after eviction", volume)
	}
	if entries == 10 {
		t.Errorf("expected eviction to remove at least one entry")
	}
}
