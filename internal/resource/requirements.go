package resource

import (
	"fmt"

	"github.com/venusplus/vpls/internal/objid"
	"github.com/venusplus/vpls/internal/registry"
)

// ComputeFunc produces the memory requirements for an object that has
// none cached yet. In the real driver this round-trips to the server's
// fake GPU metadata provider; tests can supply a fixed value directly.
type ComputeFunc func() registry.MemoryRequirements

// BufferRequirements returns buf's memory requirements, answering from
// the cache if a prior call already populated it (original_source's
// resource_state.cpp keeps this cache per-object across binds), and
// otherwise invoking compute and caching the result.
func (t *Tracker) BufferRequirements(buf objid.BufferHandle, compute ComputeFunc) (registry.MemoryRequirements, error) {
	b, err := t.table.Buffers.Get(buf)
	if err != nil {
		return registry.MemoryRequirements{}, fmt.Errorf("resource: buffer requirements: %w", err)
	}
	if b.Requirements != nil {
		return *b.Requirements, nil
	}

	req := compute()
	if err := t.table.Buffers.GetMut(buf, func(bb *registry.Buffer) {
		bb.Requirements = &req
	}); err != nil {
		return registry.MemoryRequirements{}, err
	}
	return req, nil
}

// ImageRequirements is BufferRequirements' image-side counterpart.
func (t *Tracker) ImageRequirements(img objid.ImageHandle, compute ComputeFunc) (registry.MemoryRequirements, error) {
	im, err := t.table.Images.Get(img)
	if err != nil {
		return registry.MemoryRequirements{}, fmt.Errorf("resource: image requirements: %w", err)
	}
	if im.Requirements != nil {
		return *im.Requirements, nil
	}

	req := compute()
	if err := t.table.Images.GetMut(img, func(ii *registry.Image) {
		ii.Requirements = &req
	}); err != nil {
		return registry.MemoryRequirements{}, err
	}
	return req, nil
}
