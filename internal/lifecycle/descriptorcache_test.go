package lifecycle

import (
	"testing"

	"github.com/venusplus/vpls/internal/objid"
	"github.com/venusplus/vpls/internal/registry"
)

func TestTracker_DescriptorBindElision(t *testing.T) {
	// spec.md §8 scenario 4.
	tbl := registry.NewTable()
	tr := NewTracker(tbl)
	dev := tbl.Devices.Add(registry.Device{})
	pool := tbl.CommandPools.Add(registry.CommandPool{Parent: dev})
	cb := tbl.CommandBuffers.Add(registry.CommandBuffer{Parent: pool})

	bind := DescriptorBind{
		BindPoint:      1, // GRAPHICS
		PipelineLayout: objid.ServerIdentity(0x11),
		FirstSet:       0,
		Sets:           []objid.ServerIdentity{0x51, 0x52},
		DynamicOffsets: []uint32{8},
	}

	changed, err := tr.BindDescriptorSets(cb, bind)
	if err != nil {
		t.Fatalf("first BindDescriptorSets() error = %v", err)
	}
	if !changed {
		t.Error("first identical bind should report changed")
	}

	changed, err = tr.BindDescriptorSets(cb, bind)
	if err != nil {
		t.Fatalf("second BindDescriptorSets() error = %v", err)
	}
	if changed {
		t.Error("second identical bind should report no-change")
	}

	bind.FirstSet = 1
	changed, err = tr.BindDescriptorSets(cb, bind)
	if err != nil {
		t.Fatalf("third BindDescriptorSets() error = %v", err)
	}
	if !changed {
		t.Error("bind with a different FirstSet should report changed")
	}
}

func TestTracker_DescriptorBindPerBindPoint(t *testing.T) {
	tbl := registry.NewTable()
	tr := NewTracker(tbl)
	dev := tbl.Devices.Add(registry.Device{})
	pool := tbl.CommandPools.Add(registry.CommandPool{Parent: dev})
	cb := tbl.CommandBuffers.Add(registry.CommandBuffer{Parent: pool})

	graphics := DescriptorBind{BindPoint: 1, Sets: []objid.ServerIdentity{1}}
	compute := DescriptorBind{BindPoint: 2, Sets: []objid.ServerIdentity{1}}

	if changed, _ := tr.BindDescriptorSets(cb, graphics); !changed {
		t.Error("first graphics bind should report changed")
	}
	if changed, _ := tr.BindDescriptorSets(cb, compute); !changed {
		t.Error("compute bind-point is independent of graphics and should report changed")
	}
	if changed, _ := tr.BindDescriptorSets(cb, graphics); changed {
		t.Error("repeated identical graphics bind should report no-change")
	}
}

func TestTracker_BeginClearsDescriptorCache(t *testing.T) {
	tbl := registry.NewTable()
	tr := NewTracker(tbl)
	dev := tbl.Devices.Add(registry.Device{})
	pool := tbl.CommandPools.Add(registry.CommandPool{Parent: dev})
	cb := tbl.CommandBuffers.Add(registry.CommandBuffer{Parent: pool})

	bind := DescriptorBind{BindPoint: 1, Sets: []objid.ServerIdentity{1}}
	if err := tr.Begin(cb); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if changed, err := tr.BindDescriptorSets(cb, bind); err != nil || !changed {
		t.Fatalf("BindDescriptorSets() = (%v, %v), want (true, nil)", changed, err)
	}
	if err := tr.End(cb); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	// Re-recording clears the cache, so the identical bind reports
	// changed again rather than being elided against stale state.
	if err := tr.Begin(cb); err != nil {
		t.Fatalf("re-Begin() error = %v", err)
	}
	if changed, err := tr.BindDescriptorSets(cb, bind); err != nil || !changed {
		t.Errorf("BindDescriptorSets() after re-Begin = (%v, %v), want (true, nil)", changed, err)
	}
}
