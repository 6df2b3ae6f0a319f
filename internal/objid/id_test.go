package objid

import (
	"sync"
	"testing"
)

type testMarker struct{}

func (testMarker) category() {}

func TestRawHandle_ZipUnzip(t *testing.T) {
	tests := []struct {
		name  string
		index Index
		epoch Epoch
	}{
		{"zero", 0, 0},
		{"index only", 42, 0},
		{"epoch only", 0, 7},
		{"both set", 1234, 5},
		{"max index", ^uint32(0), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Zip(tt.index, tt.epoch)
			gotIndex, gotEpoch := h.Unzip()
			if gotIndex != tt.index || gotEpoch != tt.epoch {
				t.Errorf("Unzip() = (%d,%d), want (%d,%d)", gotIndex, gotEpoch, tt.index, tt.epoch)
			}
		})
	}
}

func TestRawHandle_IsZero(t *testing.T) {
	if !RawHandle(0).IsZero() {
		t.Error("zero RawHandle should be zero")
	}
	if Zip(1, 1).IsZero() {
		t.Error("non-zero RawHandle should not be zero")
	}
}

func TestHandle_RoundTrip(t *testing.T) {
	h := NewHandle[testMarker](10, 3)
	if h.Index() != 10 || h.Epoch() != 3 {
		t.Fatalf("got index=%d epoch=%d", h.Index(), h.Epoch())
	}

	back := FromRaw[testMarker](h.Raw())
	if back != h {
		t.Errorf("FromRaw(h.Raw()) = %v, want %v", back, h)
	}
}

func TestAllocator_SequentialAlloc(t *testing.T) {
	a := NewAllocator[testMarker]()

	h0 := a.Alloc()
	h1 := a.Alloc()
	h2 := a.Alloc()

	if h0.Index() != 0 || h1.Index() != 1 || h2.Index() != 2 {
		t.Fatalf("expected sequential indices, got %d,%d,%d", h0.Index(), h1.Index(), h2.Index())
	}
	for _, h := range []Handle[testMarker]{h0, h1, h2} {
		if h.Epoch() != 1 {
			t.Errorf("fresh handle epoch = %d, want 1", h.Epoch())
		}
	}
}

func TestAllocator_ReleaseBumpsEpoch(t *testing.T) {
	a := NewAllocator[testMarker]()

	h0 := a.Alloc()
	a.Release(h0)

	h1 := a.Alloc()
	if h1.Index() != h0.Index() {
		t.Fatalf("expected index reuse, got %d vs %d", h1.Index(), h0.Index())
	}
	if h1.Epoch() <= h0.Epoch() {
		t.Errorf("reused handle epoch %d should exceed old epoch %d", h1.Epoch(), h0.Epoch())
	}
}

func TestAllocator_Count(t *testing.T) {
	a := NewAllocator[testMarker]()
	if a.Count() != 0 {
		t.Fatalf("fresh allocator count = %d, want 0", a.Count())
	}

	h0 := a.Alloc()
	a.Alloc()
	if a.Count() != 2 {
		t.Fatalf("count after two allocs = %d, want 2", a.Count())
	}

	a.Release(h0)
	if a.Count() != 1 {
		t.Fatalf("count after release = %d, want 1", a.Count())
	}
}

func TestAllocator_ConcurrentAlloc(t *testing.T) {
	a := NewAllocator[testMarker]()

	const workers = 32
	const perWorker = 200

	var wg sync.WaitGroup
	seen := make(chan Handle[testMarker], workers*perWorker)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				h := a.Alloc()
				seen <- h
			}
		}()
	}
	wg.Wait()
	close(seen)

	indices := make(map[Index]int)
	for h := range seen {
		indices[h.Index()]++
	}
	// Every allocation produced a distinct (index,epoch) pair, so no two
	// concurrently-live handles should collide on index.
	for idx, count := range indices {
		if count != 1 {
			t.Errorf("index %d allocated %d times concurrently without release", idx, count)
		}
	}
}
