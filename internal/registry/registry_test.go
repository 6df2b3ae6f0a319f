package registry

import (
	"errors"
	"testing"

	"github.com/venusplus/vpls/internal/objid"
)

func TestRegistry_AddGetRemove(t *testing.T) {
	r := New[string, objid.InstanceCategory]()

	h := r.Add("hello")
	got, err := r.Get(h)
	if err != nil || got != "hello" {
		t.Fatalf("Get() = (%q, %v), want (\"hello\", nil)", got, err)
	}

	if !r.Has(h) {
		t.Error("Has() should report true for a live handle")
	}

	removed, err := r.Remove(h)
	if err != nil || removed != "hello" {
		t.Fatalf("Remove() = (%q, %v), want (\"hello\", nil)", removed, err)
	}
	if r.Has(h) {
		t.Error("Has() should report false after Remove")
	}
}

func TestRegistry_GetServerIffHas(t *testing.T) {
	// Universal invariant (spec.md §8): for every tracked handle h,
	// get_server(h) returns Some(s) iff has(h) holds, and s is the
	// identity supplied at add time.
	r := New[Instance, objid.InstanceCategory]()
	want := objid.ServerIdentity(0xdeadbeef)

	h := r.Add(Instance{Server: want})
	if !r.Has(h) {
		t.Fatal("expected Has(h) true right after Add")
	}
	got, err := r.Get(h)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Server != want {
		t.Errorf("Server = %v, want %v", got.Server, want)
	}

	r.Remove(h)
	if r.Has(h) {
		t.Fatal("expected Has(h) false after Remove")
	}
	if _, err := r.Get(h); err == nil {
		t.Error("Get() after Remove should error")
	}
}

func TestRegistry_UnknownHandleIsInvalid(t *testing.T) {
	r := New[string, objid.InstanceCategory]()

	var zero objid.Handle[objid.InstanceCategory]
	if _, err := r.Get(zero); !errors.Is(err, objid.ErrInvalidHandle) {
		t.Errorf("Get(zero) error = %v, want ErrInvalidHandle", err)
	}
	if _, err := r.Remove(zero); !errors.Is(err, objid.ErrInvalidHandle) {
		t.Errorf("Remove(zero) error = %v, want ErrInvalidHandle", err)
	}
}

func TestRegistry_EpochMismatchAfterRecycle(t *testing.T) {
	r := New[int, objid.InstanceCategory]()

	h0 := r.Add(1)
	r.Remove(h0)
	h1 := r.Add(2) // reuses h0's index with a higher epoch

	if h1.Index() != h0.Index() {
		t.Fatalf("expected index reuse, got %d vs %d", h1.Index(), h0.Index())
	}
	if _, err := r.Get(h0); !errors.Is(err, objid.ErrEpochMismatch) {
		t.Errorf("Get(stale handle) error = %v, want ErrEpochMismatch", err)
	}
}

func TestRegistry_ForEach(t *testing.T) {
	r := New[int, objid.InstanceCategory]()
	r.Add(1)
	r.Add(2)
	r.Add(3)

	sum := 0
	r.ForEach(func(_ objid.Handle[objid.InstanceCategory], v int) bool {
		sum += v
		return true
	})
	if sum != 6 {
		t.Errorf("sum over ForEach = %d, want 6", sum)
	}
}
