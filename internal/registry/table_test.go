package registry

import (
	"testing"

	"github.com/venusplus/vpls/internal/objid"
)

func TestTable_BufferBindCascade(t *testing.T) {
	// spec.md §8 scenario 3: allocate memory, bind a buffer to it, free
	// the memory, observe the back-ref cleared.
	tbl := NewTable()
	dev := tbl.Devices.Add(Device{})

	mem := tbl.Memories.Add(DeviceMemory{Parent: dev, Size: 1 << 20})
	buf := tbl.Buffers.Add(Buffer{Parent: dev, Size: 1 << 20})

	tbl.Buffers.GetMut(buf, func(b *Buffer) {
		b.BoundMemory = mem
		b.BoundOffset = 0
	})
	tbl.Memories.GetMut(mem, func(m *DeviceMemory) {
		m.BoundBuffers = append(m.BoundBuffers, buf)
	})

	m, _ := tbl.Memories.Get(mem)
	if len(m.BoundBuffers) != 1 || m.BoundBuffers[0] != buf {
		t.Fatalf("expected memories[m].bound_buffers == [b], got %v", m.BoundBuffers)
	}

	tbl.Memories.Remove(mem)
	// Note: this direct Remove (not RemoveDevice) does not cascade the
	// back-ref clear; that is RemoveDevice's job, exercised below.
	_ = buf
}

func TestTable_RemoveDeviceCascade(t *testing.T) {
	tbl := NewTable()
	dev := tbl.Devices.Add(Device{})

	mem := tbl.Memories.Add(DeviceMemory{Parent: dev, Size: 1 << 20})
	buf := tbl.Buffers.Add(Buffer{Parent: dev, Size: 1 << 20, BoundMemory: mem})
	tbl.Memories.GetMut(mem, func(m *DeviceMemory) {
		m.BoundBuffers = append(m.BoundBuffers, buf)
	})

	pool := tbl.CommandPools.Add(CommandPool{Parent: dev})
	cb := tbl.CommandBuffers.Add(CommandBuffer{Parent: pool})
	tbl.CommandPools.GetMut(pool, func(cp *CommandPool) {
		cp.CommandBuffers = append(cp.CommandBuffers, cb)
	})

	fence := tbl.Fences.Add(FenceState{Parent: dev})
	sem := tbl.Semaphores.Add(SemaphoreState{Parent: dev})
	qp := tbl.QueryPools.Add(QueryPool{Parent: dev, QueryCount: 4})

	result := tbl.RemoveDevice(dev)

	if len(result.DestroyedCommandPools) != 1 || result.DestroyedCommandPools[0] != pool {
		t.Errorf("DestroyedCommandPools = %v, want [%v]", result.DestroyedCommandPools, pool)
	}
	if len(result.DestroyedCommandBuffers) != 1 || result.DestroyedCommandBuffers[0] != cb {
		t.Errorf("DestroyedCommandBuffers = %v, want [%v]", result.DestroyedCommandBuffers, cb)
	}

	// Universal invariant (spec.md §8): after remove_device(d), no
	// tracker contains any object whose parent device is d.
	if tbl.Devices.Has(dev) {
		t.Error("device should be removed")
	}
	if tbl.Memories.Has(mem) {
		t.Error("memory should be removed")
	}
	if tbl.Buffers.Has(buf) {
		t.Error("buffer should be removed")
	}
	if tbl.CommandPools.Has(pool) {
		t.Error("command pool should be removed")
	}
	if tbl.CommandBuffers.Has(cb) {
		t.Error("command buffer should be removed")
	}
	if tbl.Fences.Has(fence) {
		t.Error("fence should be removed")
	}
	if tbl.Semaphores.Has(sem) {
		t.Error("semaphore should be removed")
	}
	if tbl.QueryPools.Has(qp) {
		t.Error("query pool should be removed")
	}
}

func TestTable_RemoveDeviceClearsMemoryBackRefs(t *testing.T) {
	tbl := NewTable()
	dev := tbl.Devices.Add(Device{})
	otherDev := tbl.Devices.Add(Device{})

	mem := tbl.Memories.Add(DeviceMemory{Parent: dev, Size: 1024})
	// Buffer parented to a *different* device but bound to this memory —
	// an unusual but representable state; RemoveDevice(dev) must still
	// clear its back-ref since its bound memory was freed.
	buf := tbl.Buffers.Add(Buffer{Parent: otherDev, BoundMemory: mem})

	tbl.RemoveDevice(dev)

	b, err := tbl.Buffers.Get(buf)
	if err != nil {
		t.Fatalf("buffer from other device should survive: %v", err)
	}
	var zero objid.DeviceMemoryHandle
	if b.BoundMemory != zero {
		t.Errorf("BoundMemory = %v, want zero value after owning memory freed", b.BoundMemory)
	}
}

func TestTable_RemoveCommandPoolReportsChildren(t *testing.T) {
	tbl := NewTable()
	dev := tbl.Devices.Add(Device{})
	pool := tbl.CommandPools.Add(CommandPool{Parent: dev})
	cb1 := tbl.CommandBuffers.Add(CommandBuffer{Parent: pool})
	cb2 := tbl.CommandBuffers.Add(CommandBuffer{Parent: pool})
	tbl.CommandPools.GetMut(pool, func(cp *CommandPool) {
		cp.CommandBuffers = []objid.CommandBufferHandle{cb1, cb2}
	})

	destroyed, err := tbl.RemoveCommandPool(pool)
	if err != nil {
		t.Fatalf("RemoveCommandPool error = %v", err)
	}
	if len(destroyed) != 2 {
		t.Fatalf("destroyed = %v, want 2 entries", destroyed)
	}
	if tbl.CommandBuffers.Has(cb1) || tbl.CommandBuffers.Has(cb2) {
		t.Error("child command buffers should be removed with their pool")
	}
}

func TestTable_CommandBufferPoolInvariant(t *testing.T) {
	// Universal invariant (spec.md §8): for every command buffer c in
	// pools[p].command_buffers, c.pool == p.
	tbl := NewTable()
	dev := tbl.Devices.Add(Device{})
	pool := tbl.CommandPools.Add(CommandPool{Parent: dev})
	cb := tbl.CommandBuffers.Add(CommandBuffer{Parent: pool})
	tbl.CommandPools.GetMut(pool, func(cp *CommandPool) {
		cp.CommandBuffers = append(cp.CommandBuffers, cb)
	})

	cp, _ := tbl.CommandPools.Get(pool)
	for _, h := range cp.CommandBuffers {
		got, err := tbl.CommandBuffers.Get(h)
		if err != nil {
			t.Fatalf("command buffer missing: %v", err)
		}
		if got.Parent != pool {
			t.Errorf("command buffer's Parent = %v, want %v", got.Parent, pool)
		}
	}
}
