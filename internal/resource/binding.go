// Package resource implements the Resource & Binding Tracker (spec.md §4.2,
// §3): buffer/image <-> device-memory binding bookkeeping and the
// cross-indexes that keep a memory allocation's back-reference lists
// consistent with each buffer/image's bound_memory field.
//
// The registry itself (internal/registry) stores the bound_memory/
// bound_buffers/bound_images fields; this package is the narrow set of
// operations that mutate both sides of a binding together so they can
// never drift, mirroring how the teacher's track.BufferTracker keeps its
// states slice and its ResourceMetadata bitmap in lockstep.
package resource

import (
	"errors"
	"fmt"

	"github.com/venusplus/vpls/internal/objid"
	"github.com/venusplus/vpls/internal/registry"
)

// ErrAlreadyBound is returned by BindBuffer/BindImage when the target is
// already bound to a (possibly different) allocation; a binding is
// unique and exclusive while bound (spec.md §3).
var ErrAlreadyBound = errors.New("resource: already bound to a memory allocation")

// Tracker binds buffers and images to device-memory allocations, keeping
// DeviceMemory.BoundBuffers/BoundImages and Buffer/Image.BoundMemory
// consistent on every bind and unbind.
type Tracker struct {
	table *registry.Table
}

// NewTracker builds a binding tracker over the given registry table.
func NewTracker(table *registry.Table) *Tracker {
	return &Tracker{table: table}
}

// BindBuffer binds buf to mem at offset, failing if buf is already bound.
func (t *Tracker) BindBuffer(buf objid.BufferHandle, mem objid.DeviceMemoryHandle, offset uint64) error {
	b, err := t.table.Buffers.Get(buf)
	if err != nil {
		return fmt.Errorf("resource: bind buffer: %w", err)
	}
	if b.BoundMemory != (objid.DeviceMemoryHandle{}) {
		return ErrAlreadyBound
	}
	if !t.table.Memories.Has(mem) {
		return fmt.Errorf("resource: bind buffer: %w", objid.ErrInvalidHandle)
	}

	if err := t.table.Buffers.GetMut(buf, func(bb *registry.Buffer) {
		bb.BoundMemory = mem
		bb.BoundOffset = offset
	}); err != nil {
		return err
	}
	t.table.Memories.GetMut(mem, func(m *registry.DeviceMemory) {
		m.BoundBuffers = append(m.BoundBuffers, buf)
	})
	return nil
}

// UnbindBuffer clears buf's binding, if any, and removes it from its
// memory's back-reference list. A no-op if buf is already unbound.
func (t *Tracker) UnbindBuffer(buf objid.BufferHandle) error {
	b, err := t.table.Buffers.Get(buf)
	if err != nil {
		return fmt.Errorf("resource: unbind buffer: %w", err)
	}
	mem := b.BoundMemory
	if mem == (objid.DeviceMemoryHandle{}) {
		return nil
	}

	t.table.Buffers.GetMut(buf, func(bb *registry.Buffer) {
		bb.BoundMemory = objid.DeviceMemoryHandle{}
		bb.BoundOffset = 0
	})
	t.table.Memories.GetMut(mem, func(m *registry.DeviceMemory) {
		m.BoundBuffers = removeBuffer(m.BoundBuffers, buf)
	})
	return nil
}

// BindImage binds img to mem at offset, failing if img is already bound.
func (t *Tracker) BindImage(img objid.ImageHandle, mem objid.DeviceMemoryHandle, offset uint64) error {
	im, err := t.table.Images.Get(img)
	if err != nil {
		return fmt.Errorf("resource: bind image: %w", err)
	}
	if im.BoundMemory != (objid.DeviceMemoryHandle{}) {
		return ErrAlreadyBound
	}
	if !t.table.Memories.Has(mem) {
		return fmt.Errorf("resource: bind image: %w", objid.ErrInvalidHandle)
	}

	if err := t.table.Images.GetMut(img, func(ii *registry.Image) {
		ii.BoundMemory = mem
		ii.BoundOffset = offset
	}); err != nil {
		return err
	}
	t.table.Memories.GetMut(mem, func(m *registry.DeviceMemory) {
		m.BoundImages = append(m.BoundImages, img)
	})
	return nil
}

// UnbindImage clears img's binding, if any, and removes it from its
// memory's back-reference list. A no-op if img is already unbound.
func (t *Tracker) UnbindImage(img objid.ImageHandle) error {
	im, err := t.table.Images.Get(img)
	if err != nil {
		return fmt.Errorf("resource: unbind image: %w", err)
	}
	mem := im.BoundMemory
	if mem == (objid.DeviceMemoryHandle{}) {
		return nil
	}

	t.table.Images.GetMut(img, func(ii *registry.Image) {
		ii.BoundMemory = objid.DeviceMemoryHandle{}
		ii.BoundOffset = 0
	})
	t.table.Memories.GetMut(mem, func(m *registry.DeviceMemory) {
		m.BoundImages = removeImage(m.BoundImages, img)
	})
	return nil
}

func removeBuffer(list []objid.BufferHandle, h objid.BufferHandle) []objid.BufferHandle {
	out := list[:0]
	for _, x := range list {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}

func removeImage(list []objid.ImageHandle, h objid.ImageHandle) []objid.ImageHandle {
	out := list[:0]
	for _, x := range list {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}
