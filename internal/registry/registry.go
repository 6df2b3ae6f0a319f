// Package registry implements the Object Registry (spec.md §4.2): a set
// of per-category handle tables mapping a client handle to its server
// identity plus whatever shadow state that category needs, together with
// the cascade-on-device-removal semantics spec.md §3 requires.
package registry

import "github.com/venusplus/vpls/internal/objid"

// Registry is a single object category's handle table: a type-safe
// allocator paired with epoch-checked storage. It is the unit every
// per-category table in Table is built from.
//
// Thread-safe for concurrent use; every operation takes the registry's
// lock for its full duration (linearizable, per spec.md §4.2).
type Registry[V any, T objid.Category] struct {
	alloc *objid.Allocator[T]
	store *objid.Store[V, T]
}

// New creates an empty registry for the given shadow-state type and
// object category.
func New[V any, T objid.Category]() *Registry[V, T] {
	return &Registry[V, T]{
		alloc: objid.NewAllocator[T](),
		store: objid.NewStore[V, T](64),
	}
}

// Add allocates a fresh client handle, stores item under it, and returns
// the handle.
func (r *Registry[V, T]) Add(item V) objid.Handle[T] {
	h := r.alloc.Alloc()
	r.store.Insert(h, item)
	return h
}

// Get retrieves the shadow state stored under h.
func (r *Registry[V, T]) Get(h objid.Handle[T]) (V, error) {
	if h.IsZero() {
		var zero V
		return zero, objid.ErrInvalidHandle
	}
	item, ok := r.store.Get(h)
	if !ok {
		var zero V
		return zero, r.missErr(h)
	}
	return item, nil
}

// GetMut calls fn with a pointer to h's shadow state for in-place
// mutation, while holding the registry's write lock.
func (r *Registry[V, T]) GetMut(h objid.Handle[T], fn func(*V)) error {
	if h.IsZero() {
		return objid.ErrInvalidHandle
	}
	if !r.store.GetMut(h, fn) {
		return r.missErr(h)
	}
	return nil
}

// Has reports whether h currently names a live object.
func (r *Registry[V, T]) Has(h objid.Handle[T]) bool {
	if h.IsZero() {
		return false
	}
	return r.store.Contains(h)
}

// Remove deletes h's object and releases its index for reuse, returning
// the removed shadow state.
func (r *Registry[V, T]) Remove(h objid.Handle[T]) (V, error) {
	if h.IsZero() {
		var zero V
		return zero, objid.ErrInvalidHandle
	}
	item, ok := r.store.Remove(h)
	if !ok {
		var zero V
		return zero, r.missErr(h)
	}
	r.alloc.Release(h)
	return item, nil
}

// Count returns the number of currently live objects.
func (r *Registry[V, T]) Count() uint64 {
	return r.alloc.Count()
}

// ForEach visits every live (handle, shadow-state) pair in index order.
// Returning false from fn stops iteration early.
func (r *Registry[V, T]) ForEach(fn func(objid.Handle[T], V) bool) {
	r.store.ForEach(fn)
}

// missErr distinguishes "never allocated" (ErrNotFound) from "this index
// was allocated but has since been recycled to a different epoch"
// (ErrEpochMismatch), mirroring the teacher's Registry.Get: an index
// within the storage's current capacity that still misses must have
// failed on epoch, not absence.
func (r *Registry[V, T]) missErr(h objid.Handle[T]) error {
	index, _ := h.Unzip()
	if r.store.Capacity() > int(index) {
		return objid.ErrEpochMismatch
	}
	return objid.ErrNotFound
}
