package registry

import (
	"sort"
	"sync"

	"github.com/venusplus/vpls/internal/objid"
)

// Table aggregates every per-category registry into the single Object
// Registry the rest of the driver talks to (spec.md §4.2). It mirrors the
// teacher's Hub: one outer mutex for operations that touch more than one
// category (cascades), each inner Registry handling its own category's
// single-category operations under its own lock.
//
// Cross-tracker cascades run under the outer mutex and take each
// category's own lock for one call at a time, never two at once, so the
// categories need no lock order among themselves.
type Table struct {
	mu sync.Mutex

	Instances       *Registry[Instance, objid.InstanceCategory]
	PhysicalDevices *Registry[PhysicalDevice, objid.PhysicalDeviceCategory]
	Devices         *Registry[Device, objid.DeviceCategory]
	Queues          *Registry[Queue, objid.QueueCategory]
	CommandPools    *Registry[CommandPool, objid.CommandPoolCategory]
	CommandBuffers  *Registry[CommandBuffer, objid.CommandBufferCategory]
	Buffers         *Registry[Buffer, objid.BufferCategory]
	Images          *Registry[Image, objid.ImageCategory]
	Memories        *Registry[DeviceMemory, objid.DeviceMemoryCategory]
	Fences          *Registry[FenceState, objid.FenceCategory]
	Semaphores      *Registry[SemaphoreState, objid.SemaphoreCategory]
	Events          *Registry[EventState, objid.EventCategory]
	QueryPools      *Registry[QueryPool, objid.QueryPoolCategory]
}

// DeviceCascadeResult reports what remove_device tore down, so the
// caller can surface matching destroy commands to the transport
// (spec.md §4.2).
type DeviceCascadeResult struct {
	DestroyedCommandPools   []objid.CommandPoolHandle
	DestroyedCommandBuffers []objid.CommandBufferHandle
}

// NewTable builds an empty registry table with every category initialized.
func NewTable() *Table {
	return &Table{
		Instances:       New[Instance, objid.InstanceCategory](),
		PhysicalDevices: New[PhysicalDevice, objid.PhysicalDeviceCategory](),
		Devices:         New[Device, objid.DeviceCategory](),
		Queues:          New[Queue, objid.QueueCategory](),
		CommandPools:    New[CommandPool, objid.CommandPoolCategory](),
		CommandBuffers:  New[CommandBuffer, objid.CommandBufferCategory](),
		Buffers:         New[Buffer, objid.BufferCategory](),
		Images:          New[Image, objid.ImageCategory](),
		Memories:        New[DeviceMemory, objid.DeviceMemoryCategory](),
		Fences:          New[FenceState, objid.FenceCategory](),
		Semaphores:      New[SemaphoreState, objid.SemaphoreCategory](),
		Events:          New[EventState, objid.EventCategory](),
		QueryPools:      New[QueryPool, objid.QueryPoolCategory](),
	}
}

// RemoveDevice cascades a VkDestroyDevice: every buffer, image, memory,
// command pool (and its command buffers), fence, semaphore, event, query
// pool and queue owned by d is removed. Shadow mappings are not held
// here; shadowmem.Manager.RemoveDevice frees them. Freed memory clears the
// BoundMemory field of every buffer/image still pointing at it (spec.md
// §3). Returns the destroyed command pools and command buffers so the
// caller can surface them to the transport.
func (t *Table) RemoveDevice(d objid.DeviceHandle) DeviceCascadeResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := DeviceCascadeResult{}

	// Command pools + their command buffers.
	var deadPools []objid.CommandPoolHandle
	t.CommandPools.ForEach(func(h objid.CommandPoolHandle, cp CommandPool) bool {
		if cp.Parent == d {
			deadPools = append(deadPools, h)
		}
		return true
	})
	for _, ph := range deadPools {
		cp, err := t.CommandPools.Remove(ph)
		if err != nil {
			continue
		}
		result.DestroyedCommandPools = append(result.DestroyedCommandPools, ph)
		for _, cb := range cp.CommandBuffers {
			if _, err := t.CommandBuffers.Remove(cb); err == nil {
				result.DestroyedCommandBuffers = append(result.DestroyedCommandBuffers, cb)
			}
		}
	}

	// Memory allocations: remove, then clear back-refs on any buffer/image
	// still pointing at them (should be none left if bind/unbind kept
	// cross-indexes consistent, but device teardown may race an explicit
	// unbind, so this is not skipped).
	var deadMemories []objid.DeviceMemoryHandle
	t.Memories.ForEach(func(h objid.DeviceMemoryHandle, m DeviceMemory) bool {
		if m.Parent == d {
			deadMemories = append(deadMemories, h)
		}
		return true
	})
	for _, mh := range deadMemories {
		t.Memories.Remove(mh)
		// GetMut takes the store's write lock, so it runs only after
		// ForEach has released its read lock.
		var boundBuffers []objid.BufferHandle
		t.Buffers.ForEach(func(bh objid.BufferHandle, b Buffer) bool {
			if b.BoundMemory == mh {
				boundBuffers = append(boundBuffers, bh)
			}
			return true
		})
		for _, bh := range boundBuffers {
			t.Buffers.GetMut(bh, func(bb *Buffer) {
				bb.BoundMemory = objid.DeviceMemoryHandle{}
			})
		}
		var boundImages []objid.ImageHandle
		t.Images.ForEach(func(ih objid.ImageHandle, im Image) bool {
			if im.BoundMemory == mh {
				boundImages = append(boundImages, ih)
			}
			return true
		})
		for _, ih := range boundImages {
			t.Images.GetMut(ih, func(ii *Image) {
				ii.BoundMemory = objid.DeviceMemoryHandle{}
			})
		}
	}

	// Buffers and images owned by the device.
	var deadBuffers []objid.BufferHandle
	t.Buffers.ForEach(func(h objid.BufferHandle, b Buffer) bool {
		if b.Parent == d {
			deadBuffers = append(deadBuffers, h)
		}
		return true
	})
	for _, bh := range deadBuffers {
		t.Buffers.Remove(bh)
	}

	var deadImages []objid.ImageHandle
	t.Images.ForEach(func(h objid.ImageHandle, im Image) bool {
		if im.Parent == d {
			deadImages = append(deadImages, h)
		}
		return true
	})
	for _, ih := range deadImages {
		t.Images.Remove(ih)
	}

	removeOwnedFences(t, d)
	removeOwnedSemaphores(t, d)
	removeOwnedEvents(t, d)
	removeOwnedQueryPools(t, d)
	removeOwnedQueues(t, d)

	t.Devices.Remove(d)

	sort.Slice(result.DestroyedCommandPools, func(i, j int) bool {
		return result.DestroyedCommandPools[i].Index() < result.DestroyedCommandPools[j].Index()
	})
	return result
}

func removeOwnedFences(t *Table, d objid.DeviceHandle) {
	var dead []objid.FenceHandle
	t.Fences.ForEach(func(h objid.FenceHandle, f FenceState) bool {
		if f.Parent == d {
			dead = append(dead, h)
		}
		return true
	})
	for _, h := range dead {
		t.Fences.Remove(h)
	}
}

func removeOwnedSemaphores(t *Table, d objid.DeviceHandle) {
	var dead []objid.SemaphoreHandle
	t.Semaphores.ForEach(func(h objid.SemaphoreHandle, s SemaphoreState) bool {
		if s.Parent == d {
			dead = append(dead, h)
		}
		return true
	})
	for _, h := range dead {
		t.Semaphores.Remove(h)
	}
}

func removeOwnedEvents(t *Table, d objid.DeviceHandle) {
	var dead []objid.EventHandle
	t.Events.ForEach(func(h objid.EventHandle, e EventState) bool {
		if e.Parent == d {
			dead = append(dead, h)
		}
		return true
	})
	for _, h := range dead {
		t.Events.Remove(h)
	}
}

func removeOwnedQueryPools(t *Table, d objid.DeviceHandle) {
	var dead []objid.QueryPoolHandle
	t.QueryPools.ForEach(func(h objid.QueryPoolHandle, q QueryPool) bool {
		if q.Parent == d {
			dead = append(dead, h)
		}
		return true
	})
	for _, h := range dead {
		t.QueryPools.Remove(h)
	}
}

func removeOwnedQueues(t *Table, d objid.DeviceHandle) {
	var dead []objid.QueueHandle
	t.Queues.ForEach(func(h objid.QueueHandle, q Queue) bool {
		if q.Parent == d {
			dead = append(dead, h)
		}
		return true
	})
	for _, h := range dead {
		t.Queues.Remove(h)
	}
}

// RemoveCommandPool removes a command pool and all of its child command
// buffers, reporting the destroyed buffer handles upward (spec.md §3).
func (t *Table) RemoveCommandPool(p objid.CommandPoolHandle) ([]objid.CommandBufferHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp, err := t.CommandPools.Remove(p)
	if err != nil {
		return nil, err
	}
	destroyed := make([]objid.CommandBufferHandle, 0, len(cp.CommandBuffers))
	for _, cb := range cp.CommandBuffers {
		if _, err := t.CommandBuffers.Remove(cb); err == nil {
			destroyed = append(destroyed, cb)
		}
	}
	return destroyed, nil
}
