package lifecycle

import (
	"fmt"

	"github.com/venusplus/vpls/internal/objid"
	"github.com/venusplus/vpls/internal/registry"
)

// DescriptorBind is one bindDescriptorSets call's arguments, compared
// against the command buffer's last cached bind for the same bind point
// (spec.md §4.2, "Descriptor-bind cache").
type DescriptorBind struct {
	BindPoint      uint32
	PipelineLayout objid.ServerIdentity
	FirstSet       uint32
	Sets           []objid.ServerIdentity
	DynamicOffsets []uint32
}

// BindDescriptorSets compares bind against cb's cached bind for
// bind.BindPoint. If identical it reports no-change (changed=false) and
// leaves the cache untouched; otherwise it updates the cache and reports
// changed=true. This is an idempotence optimisation only — the caller
// must still emit the command to the server when changed is true.
func (t *Tracker) BindDescriptorSets(cb objid.CommandBufferHandle, bind DescriptorBind) (changed bool, err error) {
	c, getErr := t.table.CommandBuffers.Get(cb)
	if getErr != nil {
		return false, fmt.Errorf("lifecycle: bind descriptor sets: %w", getErr)
	}

	if prev, ok := c.BindSnapshots[bind.BindPoint]; ok && prev.Valid && sameBind(prev, bind) {
		return false, nil
	}

	snap := registry.DescriptorBindSnapshot{
		Valid:          true,
		BindPoint:      bind.BindPoint,
		PipelineLayout: bind.PipelineLayout,
		FirstSet:       bind.FirstSet,
		Sets:           append([]objid.ServerIdentity(nil), bind.Sets...),
		DynamicOffsets: append([]uint32(nil), bind.DynamicOffsets...),
	}
	err = t.table.CommandBuffers.GetMut(cb, func(cc *registry.CommandBuffer) {
		if cc.BindSnapshots == nil {
			cc.BindSnapshots = make(map[uint32]registry.DescriptorBindSnapshot)
		}
		cc.BindSnapshots[bind.BindPoint] = snap
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func sameBind(prev registry.DescriptorBindSnapshot, bind DescriptorBind) bool {
	if prev.PipelineLayout != bind.PipelineLayout || prev.FirstSet != bind.FirstSet {
		return false
	}
	if len(prev.Sets) != len(bind.Sets) || len(prev.DynamicOffsets) != len(bind.DynamicOffsets) {
		return false
	}
	for i := range prev.Sets {
		if prev.Sets[i] != bind.Sets[i] {
			return false
		}
	}
	for i := range prev.DynamicOffsets {
		if prev.DynamicOffsets[i] != bind.DynamicOffsets[i] {
			return false
		}
	}
	return true
}
