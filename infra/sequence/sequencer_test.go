package sequence

import (
	"sync"
	"testing"
)

func TestSequencerMonotonic(t *testing.T) {
	s := New(0)
	for want := uint64(1); want <= 100; want++ {
		if got := s.Next(); got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}
	if s.Current() != 100 {
		t.Fatalf("Current() = %d, want 100", s.Current())
	}
}

func TestSequencerReset(t *testing.T) {
	s := New(0)
	s.Next()
	s.Reset(500)
	if got := s.Next(); got != 501 {
		t.Fatalf("Next() after Reset(500) = %d, want 501", got)
	}
}

func TestSequencerConcurrentUnique(t *testing.T) {
	s := New(0)
	const workers, per = 8, 1000

	var wg sync.WaitGroup
	results := make([][]uint64, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			out := make([]uint64, per)
			for i := range out {
				out[i] = s.Next()
			}
			results[w] = out
		}(w)
	}
	wg.Wait()

	seen := make(map[uint64]bool, workers*per)
	for _, out := range results {
		for _, v := range out {
			if seen[v] {
				t.Fatalf("duplicate sequence %d", v)
			}
			seen[v] = true
		}
	}
	if len(seen) != workers*per {
		t.Fatalf("got %d unique values, want %d", len(seen), workers*per)
	}
}
