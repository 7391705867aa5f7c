package ring

import (
	"sync"
	"testing"
	"unsafe"
)

func TestMPMCPreservesAllValuesUnderConcurrency(t *testing.T) {
	const producers = 8
	const perProducer = 4000
	const total = producers * perProducer

	r := NewMPMC(256)
	values := make([]int, total)
	for i := range values {
		values[i] = i
	}

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		base := p * perProducer
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				r.PushBackoff(unsafe.Pointer(&values[base+i]))
			}
		}(base)
	}

	seen := make([]bool, total)
	var mu sync.Mutex
	stop := make(chan struct{})
	var consumeWG sync.WaitGroup
	consumeWG.Add(4)
	for c := 0; c < 4; c++ {
		go func() {
			defer consumeWG.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if p := r.Pop(); p != nil {
					v := (*int)(p)
					mu.Lock()
					if seen[*v] {
						mu.Unlock()
						t.Errorf("duplicate delivery of %d", *v)
						return
					}
					seen[*v] = true
					mu.Unlock()
				}
			}
		}()
	}

	wg.Wait()
	for {
		mu.Lock()
		n := 0
		for _, s := range seen {
			if s {
				n++
			}
		}
		mu.Unlock()
		if n == total {
			break
		}
		if p := r.Pop(); p != nil {
			v := (*int)(p)
			mu.Lock()
			seen[*v] = true
			mu.Unlock()
		}
	}
	close(stop)
	consumeWG.Wait()

	for i, s := range seen {
		if !s {
			t.Fatalf("value %d never delivered", i)
		}
	}
}

func TestMPMCFullReportsFalse(t *testing.T) {
	r := NewMPMC(2)
	var a, b, c int
	if !r.Push(unsafe.Pointer(&a)) || !r.Push(unsafe.Pointer(&b)) {
		t.Fatal("expected first two pushes to succeed")
	}
	if r.Push(unsafe.Pointer(&c)) {
		t.Fatal("expected push into full ring to fail")
	}
	if r.Pop() == nil {
		t.Fatal("expected a value after eviction")
	}
	if !r.Push(unsafe.Pointer(&c)) {
		t.Fatal("expected push to succeed after freeing a slot")
	}
}
