// Package vkmirror is the driver-facing glue a real ICD dispatch table
// would call into: it owns the Object Registry, the lifecycle/resource
// trackers, the shadow-memory manager, and the Ring, and sequences the
// shadow-state update plus wire round-trip for every call spec.md §8's
// end-to-end scenarios name (the ICD dispatch table itself — the part
// that would make this loadable as a real Vulkan layer — is out of
// scope; see spec.md §9's "Process-wide state" note for why an Instance
// context is the right shape to hang this off of instead of globals).
package vkmirror

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/venusplus/vpls/internal/codec"
	"github.com/venusplus/vpls/internal/lifecycle"
	"github.com/venusplus/vpls/internal/objid"
	"github.com/venusplus/vpls/internal/registry"
	"github.com/venusplus/vpls/internal/resource"
	"github.com/venusplus/vpls/internal/ring"
	"github.com/venusplus/vpls/internal/shadowmem"
	"github.com/venusplus/vpls/internal/transport"
	"github.com/venusplus/vpls/internal/wire"
)

// Driver is one client-side session's worth of shadow state plus the
// wire connection backing it. One Driver corresponds to one VkInstance
// in a real ICD (spec.md §9's per-context redesign of the source's
// global trackers).
type Driver struct {
	SessionID uuid.UUID

	table      *registry.Table
	ring       *ring.Ring
	lifecycle  *lifecycle.Tracker
	resources  *resource.Tracker
	shadow     *shadowmem.Manager

	mu        sync.Mutex
	deviceLost map[objid.DeviceHandle]bool
}

// NewDriver builds a driver over t, wiring together every tracker this
// package composes. The shadow-memory manager's push/pull operations
// route through the driver itself (Driver implements shadowmem.Transfer).
func NewDriver(t transport.Transport) *Driver {
	table := registry.NewTable()
	d := &Driver{
		SessionID:  uuid.New(),
		table:      table,
		ring:       ring.NewRing(t),
		lifecycle:  lifecycle.NewTracker(table),
		resources:  resource.NewTracker(table),
		deviceLost: make(map[objid.DeviceHandle]bool),
	}
	d.shadow = shadowmem.NewManager(d)
	return d
}

// Table exposes the underlying registry for tests and higher-level
// callers that need direct access to shadow state.
func (d *Driver) Table() *registry.Table { return d.table }

// Lifecycle exposes the command-buffer/sync tracker.
func (d *Driver) Lifecycle() *lifecycle.Tracker { return d.lifecycle }

// Resources exposes the buffer/image binding tracker.
func (d *Driver) Resources() *resource.Tracker { return d.resources }

// Shadow exposes the host-memory shadow manager.
func (d *Driver) Shadow() *shadowmem.Manager { return d.shadow }

// markDeviceLost records d as lost and cascades the state transitions
// spec.md §7 requires: every command buffer on the device moves to
// INVALID.
func (d *Driver) markDeviceLost(device objid.DeviceHandle) {
	d.mu.Lock()
	d.deviceLost[device] = true
	d.mu.Unlock()
	d.lifecycle.SetDeviceLost(device)
}

// DeviceLost reports whether device has been marked lost by a prior
// transport failure (spec.md §7, tier 2).
func (d *Driver) DeviceLost(device objid.DeviceHandle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceLost[device]
}

// submit wraps ring.Submit, cascading a DeviceLostError to the owning
// device's trackers as spec.md §7 requires. device may be the zero
// handle for calls made before any device exists (instance/physical
// device enumeration).
func (d *Driver) submit(device objid.DeviceHandle, call ring.Call) error {
	if !device.IsZero() && d.DeviceLost(device) {
		return &ring.DeviceLostError{}
	}
	err := d.ring.Submit(call)
	var lost *ring.DeviceLostError
	if err != nil && !device.IsZero() {
		if ok := asDeviceLostError(err, &lost); ok {
			d.markDeviceLost(device)
		}
	}
	return err
}

// asDeviceLostError is a tiny errors.As wrapper kept local to avoid an
// import cycle concern between this file's error-handling helpers and
// the stdlib errors package's generic signature.
func asDeviceLostError(err error, target **ring.DeviceLostError) bool {
	for err != nil {
		if e, ok := err.(*ring.DeviceLostError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// --- Instance / physical device ---

// EnumerateInstanceVersion implements spec.md §8 scenario 1: discriminant
// 1, no arguments, reply is VkResult followed by the packed API version.
func (d *Driver) EnumerateInstanceVersion() (uint32, error) {
	var result int32
	var version uint32
	err := d.submit(objid.DeviceHandle{}, ring.Call{
		CommandType: cmdEnumerateInstanceVersion,
		ExpectReply: true,
		SizeHint:    8,
		Encode:      func(e *codec.Encoder) {},
		Decode: func(dec *codec.Decoder) {
			result = dec.ReadInt32()
			version = dec.ReadUint32()
		},
	})
	if err != nil {
		return 0, err
	}
	if result != 0 {
		return 0, &ring.VulkanError{Result: ring.Result(result), Op: "vkEnumerateInstanceVersion"}
	}
	return version, nil
}

// CreateInstance registers a new Instance shadow entry and asks the
// server for its identity.
func (d *Driver) CreateInstance(extensions []string) (objid.InstanceHandle, error) {
	var result int32
	var server uint64
	err := d.submit(objid.DeviceHandle{}, ring.Call{
		CommandType: cmdCreateInstance,
		ExpectReply: true,
		SizeHint:    64,
		Encode: func(e *codec.Encoder) {
			codec.WriteCountedArray(e, extensions, func(e *codec.Encoder, s string) {
				e.WriteString(s, 256)
			})
		},
		Decode: func(dec *codec.Decoder) {
			result = dec.ReadInt32()
			server = dec.ReadUint64()
		},
	})
	if err != nil {
		return objid.InstanceHandle{}, err
	}
	if result != 0 {
		return objid.InstanceHandle{}, &ring.VulkanError{Result: ring.Result(result), Op: "vkCreateInstance"}
	}
	h := d.table.Instances.Add(registry.Instance{
		Server:            objid.ServerIdentity(server),
		EnabledExtensions: extensions,
	})
	return h, nil
}

// DestroyInstance tears down the instance's shadow entry and tells the
// server to release it.
func (d *Driver) DestroyInstance(instance objid.InstanceHandle) error {
	inst, err := d.table.Instances.Get(instance)
	if err != nil {
		return fmt.Errorf("vkmirror: destroy instance: %w", err)
	}
	err = d.submit(objid.DeviceHandle{}, ring.Call{
		CommandType: cmdDestroyInstance,
		SizeHint:    8,
		Encode:      func(e *codec.Encoder) { e.WriteHandle(inst.Server) },
	})
	if err != nil {
		return err
	}
	_, err = d.table.Instances.Remove(instance)
	return err
}

// EnumeratePhysicalDevices implements the standard Vulkan two-call
// convention (spec.md §8 scenario 2): a first call with no output array
// returns the count, a second call with a count-sized array returns the
// handles.
func (d *Driver) EnumeratePhysicalDevices(instance objid.InstanceHandle) ([]objid.PhysicalDeviceHandle, error) {
	inst, err := d.table.Instances.Get(instance)
	if err != nil {
		return nil, fmt.Errorf("vkmirror: enumerate physical devices: %w", err)
	}

	var result int32
	var identities []uint64
	err = d.submit(objid.DeviceHandle{}, ring.Call{
		CommandType: cmdEnumeratePhysicalDevices,
		ExpectReply: true,
		SizeHint:    16,
		Encode:      func(e *codec.Encoder) { e.WriteHandle(inst.Server) },
		Decode: func(dec *codec.Decoder) {
			result = dec.ReadInt32()
			identities = codec.ReadCountedArray(dec, func(dec *codec.Decoder) uint64 { return dec.ReadUint64() })
		},
	})
	if err != nil {
		return nil, err
	}
	if result != 0 {
		return nil, &ring.VulkanError{Result: ring.Result(result), Op: "vkEnumeratePhysicalDevices"}
	}

	handles := make([]objid.PhysicalDeviceHandle, 0, len(identities))
	for _, ident := range identities {
		h := d.table.PhysicalDevices.Add(registry.PhysicalDevice{
			Parent: instance,
			Server: objid.ServerIdentity(ident),
		})
		handles = append(handles, h)
	}
	return handles, nil
}

// GetPhysicalDeviceProperties returns pd's properties, querying the
// server once and caching the result for the instance's lifetime
// thereafter (spec.md §4.5).
func (d *Driver) GetPhysicalDeviceProperties(pd objid.PhysicalDeviceHandle) (registry.PhysicalDeviceProperties, error) {
	cur, err := d.table.PhysicalDevices.Get(pd)
	if err != nil {
		return registry.PhysicalDeviceProperties{}, fmt.Errorf("vkmirror: get physical device properties: %w", err)
	}
	if cur.Properties.DeviceName != "" {
		return cur.Properties, nil
	}

	var props registry.PhysicalDeviceProperties
	err = d.submit(objid.DeviceHandle{}, ring.Call{
		CommandType: cmdGetPhysicalDeviceProperties,
		ExpectReply: true,
		SizeHint:    256,
		Encode:      func(e *codec.Encoder) { e.WriteHandle(cur.Server) },
		Decode: func(dec *codec.Decoder) {
			props.DeviceName = dec.ReadString(256)
			props.APIVersion = dec.ReadUint32()
			props.DriverVersion = dec.ReadUint32()
			props.VendorID = dec.ReadUint32()
			props.DeviceID = dec.ReadUint32()
			props.MaxImageDimension2D = dec.ReadUint32()
			props.MemoryHeapCount = dec.ReadUint32()
			props.MemoryTypeCount = dec.ReadUint32()
			props.QueueFamilyCount = dec.ReadUint32()
		},
	})
	if err != nil {
		return registry.PhysicalDeviceProperties{}, err
	}

	if err := d.table.PhysicalDevices.GetMut(pd, func(p *registry.PhysicalDevice) {
		p.Properties = props
	}); err != nil {
		return registry.PhysicalDeviceProperties{}, fmt.Errorf("vkmirror: cache physical device properties: %w", err)
	}
	return props, nil
}

// --- Device / queue ---

// CreateDevice registers a device shadow entry owned by pd.
func (d *Driver) CreateDevice(pd objid.PhysicalDeviceHandle, extensions []string) (objid.DeviceHandle, error) {
	phys, err := d.table.PhysicalDevices.Get(pd)
	if err != nil {
		return objid.DeviceHandle{}, fmt.Errorf("vkmirror: create device: %w", err)
	}

	var result int32
	var server uint64
	err = d.submit(objid.DeviceHandle{}, ring.Call{
		CommandType: cmdCreateDevice,
		ExpectReply: true,
		SizeHint:    64,
		Encode: func(e *codec.Encoder) {
			e.WriteHandle(phys.Server)
			codec.WriteCountedArray(e, extensions, func(e *codec.Encoder, s string) { e.WriteString(s, 256) })
		},
		Decode: func(dec *codec.Decoder) {
			result = dec.ReadInt32()
			server = dec.ReadUint64()
		},
	})
	if err != nil {
		return objid.DeviceHandle{}, err
	}
	if result != 0 {
		return objid.DeviceHandle{}, &ring.VulkanError{Result: ring.Result(result), Op: "vkCreateDevice"}
	}
	return d.table.Devices.Add(registry.Device{
		Parent:            pd,
		Server:            objid.ServerIdentity(server),
		EnabledExtensions: extensions,
	}), nil
}

// DestroyDevice tears down a device's entire shadow subtree (spec.md §3
// cascade) and tells the server to release it.
func (d *Driver) DestroyDevice(device objid.DeviceHandle) error {
	dev, err := d.table.Devices.Get(device)
	if err != nil {
		return fmt.Errorf("vkmirror: destroy device: %w", err)
	}
	err = d.submit(objid.DeviceHandle{}, ring.Call{
		CommandType: cmdDestroyDevice,
		SizeHint:    8,
		Encode:      func(e *codec.Encoder) { e.WriteHandle(dev.Server) },
	})
	if err != nil {
		return err
	}
	d.shadow.RemoveDevice(device)
	d.table.RemoveDevice(device)
	d.mu.Lock()
	delete(d.deviceLost, device)
	d.mu.Unlock()
	return nil
}

// GetDeviceQueue registers the shadow entry for one of device's queues.
func (d *Driver) GetDeviceQueue(device objid.DeviceHandle, family, index uint32) (objid.QueueHandle, error) {
	dev, err := d.table.Devices.Get(device)
	if err != nil {
		return objid.QueueHandle{}, fmt.Errorf("vkmirror: get device queue: %w", err)
	}
	var server uint64
	err = d.submit(device, ring.Call{
		CommandType: cmdGetDeviceQueue,
		ExpectReply: true,
		SizeHint:    24,
		Encode: func(e *codec.Encoder) {
			e.WriteHandle(dev.Server)
			e.WriteUint32(family)
			e.WriteUint32(index)
		},
		Decode: func(dec *codec.Decoder) { server = dec.ReadUint64() },
	})
	if err != nil {
		return objid.QueueHandle{}, err
	}
	qh := d.table.Queues.Add(registry.Queue{Parent: device, Server: objid.ServerIdentity(server), FamilyIndex: family, Index: index})
	d.table.Devices.GetMut(device, func(dv *registry.Device) {
		dv.Queues = append(dv.Queues, qh)
	})
	return qh, nil
}

// --- Memory / buffers ---

// AllocateMemory registers a device-memory shadow entry.
func (d *Driver) AllocateMemory(device objid.DeviceHandle, size uint64, typeIndex uint32) (objid.DeviceMemoryHandle, error) {
	dev, err := d.table.Devices.Get(device)
	if err != nil {
		return objid.DeviceMemoryHandle{}, fmt.Errorf("vkmirror: allocate memory: %w", err)
	}
	var result int32
	var server uint64
	err = d.submit(device, ring.Call{
		CommandType: cmdAllocateMemory,
		ExpectReply: true,
		SizeHint:    32,
		Encode: func(e *codec.Encoder) {
			e.WriteHandle(dev.Server)
			e.WriteUint64(size)
			e.WriteUint32(typeIndex)
		},
		Decode: func(dec *codec.Decoder) {
			result = dec.ReadInt32()
			server = dec.ReadUint64()
		},
	})
	if err != nil {
		return objid.DeviceMemoryHandle{}, err
	}
	if result != 0 {
		return objid.DeviceMemoryHandle{}, &ring.VulkanError{Result: ring.Result(result), Op: "vkAllocateMemory"}
	}
	return d.table.Memories.Add(registry.DeviceMemory{
		Parent:    device,
		Server:    objid.ServerIdentity(server),
		Size:      size,
		TypeIndex: typeIndex,
	}), nil
}

// FreeMemory releases a device-memory shadow entry. Per spec.md §8
// scenario 3, any buffer/image still bound to it has its BoundMemory
// cleared by Table.RemoveDevice-style bookkeeping; since a single free
// is narrower than a device cascade, that clearing happens here
// directly.
func (d *Driver) FreeMemory(mem objid.DeviceMemoryHandle) error {
	m, err := d.table.Memories.Get(mem)
	if err != nil {
		return fmt.Errorf("vkmirror: free memory: %w", err)
	}
	err = d.submit(m.Parent, ring.Call{
		CommandType: cmdFreeMemory,
		SizeHint:    8,
		Encode:      func(e *codec.Encoder) { e.WriteHandle(m.Server) },
	})
	if err != nil {
		return err
	}
	for _, bh := range m.BoundBuffers {
		d.table.Buffers.GetMut(bh, func(b *registry.Buffer) { b.BoundMemory = objid.DeviceMemoryHandle{} })
	}
	for _, ih := range m.BoundImages {
		d.table.Images.GetMut(ih, func(im *registry.Image) { im.BoundMemory = objid.DeviceMemoryHandle{} })
	}
	_, err = d.table.Memories.Remove(mem)
	return err
}

// CreateBuffer registers a buffer shadow entry, unbound.
func (d *Driver) CreateBuffer(device objid.DeviceHandle, size uint64, usage uint32) (objid.BufferHandle, error) {
	dev, err := d.table.Devices.Get(device)
	if err != nil {
		return objid.BufferHandle{}, fmt.Errorf("vkmirror: create buffer: %w", err)
	}
	var result int32
	var server uint64
	err = d.submit(device, ring.Call{
		CommandType: cmdCreateBuffer,
		ExpectReply: true,
		SizeHint:    32,
		Encode: func(e *codec.Encoder) {
			e.WriteHandle(dev.Server)
			e.WriteUint64(size)
			e.WriteUint32(usage)
		},
		Decode: func(dec *codec.Decoder) {
			result = dec.ReadInt32()
			server = dec.ReadUint64()
		},
	})
	if err != nil {
		return objid.BufferHandle{}, err
	}
	if result != 0 {
		return objid.BufferHandle{}, &ring.VulkanError{Result: ring.Result(result), Op: "vkCreateBuffer"}
	}
	return d.table.Buffers.Add(registry.Buffer{Parent: device, Server: objid.ServerIdentity(server), Size: size, Usage: usage}), nil
}

// DestroyBuffer tears down a buffer's shadow entry.
func (d *Driver) DestroyBuffer(buf objid.BufferHandle) error {
	b, err := d.table.Buffers.Get(buf)
	if err != nil {
		return fmt.Errorf("vkmirror: destroy buffer: %w", err)
	}
	err = d.submit(b.Parent, ring.Call{
		CommandType: cmdDestroyBuffer,
		SizeHint:    8,
		Encode:      func(e *codec.Encoder) { e.WriteHandle(b.Server) },
	})
	if err != nil {
		return err
	}
	_, err = d.table.Buffers.Remove(buf)
	return err
}

// BindBufferMemory binds buf to mem at offset, both locally (via
// internal/resource's cascade bookkeeping) and on the server.
func (d *Driver) BindBufferMemory(buf objid.BufferHandle, mem objid.DeviceMemoryHandle, offset uint64) error {
	b, err := d.table.Buffers.Get(buf)
	if err != nil {
		return fmt.Errorf("vkmirror: bind buffer memory: %w", err)
	}
	m, err := d.table.Memories.Get(mem)
	if err != nil {
		return fmt.Errorf("vkmirror: bind buffer memory: %w", err)
	}
	if err := d.submit(b.Parent, ring.Call{
		CommandType: cmdBindBufferMemory,
		SizeHint:    24,
		Encode: func(e *codec.Encoder) {
			e.WriteHandle(b.Server)
			e.WriteHandle(m.Server)
			e.WriteUint64(offset)
		},
	}); err != nil {
		return err
	}
	return d.resources.BindBuffer(buf, mem, offset)
}

// BufferMemoryRequirements returns buf's memory requirements, caching
// them after the first server round-trip (internal/resource handles the
// cache; this method supplies the query function).
func (d *Driver) BufferMemoryRequirements(buf objid.BufferHandle) (registry.MemoryRequirements, error) {
	b, err := d.table.Buffers.Get(buf)
	if err != nil {
		return registry.MemoryRequirements{}, fmt.Errorf("vkmirror: buffer memory requirements: %w", err)
	}
	if b.Requirements != nil {
		return *b.Requirements, nil
	}

	var req registry.MemoryRequirements
	if err := d.submit(b.Parent, ring.Call{
		CommandType: cmdGetBufferMemoryRequirements,
		ExpectReply: true,
		SizeHint:    24,
		Encode:      func(e *codec.Encoder) { e.WriteHandle(b.Server) },
		Decode: func(dec *codec.Decoder) {
			req.Size = dec.ReadUint64()
			req.Alignment = dec.ReadUint64()
			req.MemoryTypeBits = dec.ReadUint32()
		},
	}); err != nil {
		return registry.MemoryRequirements{}, err
	}

	// The server round-trip above already populated req; BufferRequirements
	// just caches it (its ComputeFunc is only invoked because the tracker
	// still finds no cached value — the race is harmless, it would just
	// overwrite with the same server-returned value).
	return d.resources.BufferRequirements(buf, func() registry.MemoryRequirements { return req })
}

// --- Command buffers ---

// CreateCommandPool registers a command-pool shadow entry.
func (d *Driver) CreateCommandPool(device objid.DeviceHandle, queueFamily uint32, flags uint32) (objid.CommandPoolHandle, error) {
	dev, err := d.table.Devices.Get(device)
	if err != nil {
		return objid.CommandPoolHandle{}, fmt.Errorf("vkmirror: create command pool: %w", err)
	}
	var server uint64
	err = d.submit(device, ring.Call{
		CommandType: cmdCreateCommandPool,
		ExpectReply: true,
		SizeHint:    24,
		Encode: func(e *codec.Encoder) {
			e.WriteHandle(dev.Server)
			e.WriteUint32(queueFamily)
			e.WriteUint32(flags)
		},
		Decode: func(dec *codec.Decoder) { server = dec.ReadUint64() },
	})
	if err != nil {
		return objid.CommandPoolHandle{}, err
	}
	return d.table.CommandPools.Add(registry.CommandPool{Parent: device, Server: objid.ServerIdentity(server), CreateFlags: flags, QueueFamily: queueFamily}), nil
}

// AllocateCommandBuffers allocates count command buffers from pool,
// registering their shadow state INITIAL (spec.md §4.2).
func (d *Driver) AllocateCommandBuffers(pool objid.CommandPoolHandle, level uint32, count int) ([]objid.CommandBufferHandle, error) {
	cp, err := d.table.CommandPools.Get(pool)
	if err != nil {
		return nil, fmt.Errorf("vkmirror: allocate command buffers: %w", err)
	}
	var identities []uint64
	err = d.submit(cp.Parent, ring.Call{
		CommandType: cmdAllocateCommandBuffers,
		ExpectReply: true,
		SizeHint:    32,
		Encode: func(e *codec.Encoder) {
			e.WriteHandle(cp.Server)
			e.WriteUint32(level)
			e.WriteUint32(uint32(count))
		},
		Decode: func(dec *codec.Decoder) {
			identities = codec.ReadCountedArray(dec, func(dec *codec.Decoder) uint64 { return dec.ReadUint64() })
		},
	})
	if err != nil {
		return nil, err
	}
	handles := make([]objid.CommandBufferHandle, 0, len(identities))
	for _, ident := range identities {
		h := d.table.CommandBuffers.Add(registry.CommandBuffer{
			Parent: pool,
			Server: objid.ServerIdentity(ident),
			Level:  level,
			State:  registry.CommandBufferInitial,
		})
		handles = append(handles, h)
	}
	d.table.CommandPools.GetMut(pool, func(p *registry.CommandPool) {
		p.CommandBuffers = append(p.CommandBuffers, handles...)
	})
	return handles, nil
}

// --- Command recording ---

// CmdCopyBuffer records a vkCmdCopyBuffer(srcBuffer, dstBuffer, ...)
// entry into cb's shadow state (spec.md §8 scenario 5). Recording is
// purely client-side bookkeeping: the server only sees the op once the
// command buffer is submitted.
func (d *Driver) CmdCopyBuffer(cb objid.CommandBufferHandle, src, dst objid.BufferHandle, srcOffset, dstOffset, size uint64) error {
	s, err := d.table.Buffers.Get(src)
	if err != nil {
		return fmt.Errorf("vkmirror: cmd copy buffer: %w", err)
	}
	dt, err := d.table.Buffers.Get(dst)
	if err != nil {
		return fmt.Errorf("vkmirror: cmd copy buffer: %w", err)
	}
	return d.recordOp(cb, registry.RecordedOp{
		Kind:      registry.RecordedOpCopyBuffer,
		Src:       s.Server,
		Dst:       dt.Server,
		SrcOffset: srcOffset,
		DstOffset: dstOffset,
		Size:      size,
	})
}

// CmdFillBuffer records a vkCmdFillBuffer(dstBuffer, offset, size, data)
// entry into cb's shadow state (spec.md §8 scenario 5).
func (d *Driver) CmdFillBuffer(cb objid.CommandBufferHandle, dst objid.BufferHandle, offset, size uint64, data uint32) error {
	dt, err := d.table.Buffers.Get(dst)
	if err != nil {
		return fmt.Errorf("vkmirror: cmd fill buffer: %w", err)
	}
	return d.recordOp(cb, registry.RecordedOp{
		Kind:     registry.RecordedOpFillBuffer,
		Dst:      dt.Server,
		DstOffset: offset,
		Size:     size,
		FillData: data,
	})
}

// recordOp appends op to cb's recorded list, rejecting anything but a
// RECORDING command buffer (spec.md §3: commands may only be recorded
// between vkBeginCommandBuffer and vkEndCommandBuffer).
func (d *Driver) recordOp(cb objid.CommandBufferHandle, op registry.RecordedOp) error {
	state, err := d.table.CommandBuffers.Get(cb)
	if err != nil {
		return fmt.Errorf("vkmirror: record command: %w", err)
	}
	if state.State != registry.CommandBufferRecording {
		return fmt.Errorf("vkmirror: record command: command buffer not RECORDING: %w", lifecycle.ErrWrongState)
	}
	return d.table.CommandBuffers.GetMut(cb, func(c *registry.CommandBuffer) {
		c.Recorded = append(c.Recorded, op)
	})
}

// --- Synchronization ---

// fenceOwnerDevice resolves the device identity a fence is scoped to so
// submit() can route a transport failure to the right device-lost
// cascade.
func (d *Driver) fenceOwnerDevice(fence objid.FenceHandle) (objid.DeviceHandle, objid.ServerIdentity, error) {
	f, err := d.table.Fences.Get(fence)
	if err != nil {
		return objid.DeviceHandle{}, 0, err
	}
	return f.Parent, f.Server, nil
}

// CreateFence registers a fence shadow entry.
func (d *Driver) CreateFence(device objid.DeviceHandle, signaled bool) (objid.FenceHandle, error) {
	dev, err := d.table.Devices.Get(device)
	if err != nil {
		return objid.FenceHandle{}, fmt.Errorf("vkmirror: create fence: %w", err)
	}
	var server uint64
	err = d.submit(device, ring.Call{
		CommandType: cmdCreateFence,
		ExpectReply: true,
		SizeHint:    16,
		Encode: func(e *codec.Encoder) {
			e.WriteHandle(dev.Server)
			var flag uint32
			if signaled {
				flag = 1
			}
			e.WriteUint32(flag)
		},
		Decode: func(dec *codec.Decoder) { server = dec.ReadUint64() },
	})
	if err != nil {
		return objid.FenceHandle{}, err
	}
	return d.table.Fences.Add(registry.FenceState{Parent: device, Server: objid.ServerIdentity(server), Signaled: signaled}), nil
}

// WaitForFences blocks (via a server round-trip) until the given
// condition holds or the device is lost. On success it refreshes each
// fence's cached signaled bit to true.
func (d *Driver) WaitForFences(device objid.DeviceHandle, fences []objid.FenceHandle, waitAll bool, timeoutNanos uint64) error {
	dev, err := d.table.Devices.Get(device)
	if err != nil {
		return fmt.Errorf("vkmirror: wait for fences: %w", err)
	}
	identities := make([]uint64, 0, len(fences))
	for _, f := range fences {
		state, err := d.table.Fences.Get(f)
		if err != nil {
			return fmt.Errorf("vkmirror: wait for fences: %w", err)
		}
		identities = append(identities, uint64(state.Server))
	}

	var result int32
	err = d.submit(device, ring.Call{
		CommandType: cmdWaitForFences,
		ExpectReply: true,
		SizeHint:    64,
		Encode: func(e *codec.Encoder) {
			e.WriteHandle(dev.Server)
			codec.WriteCountedArray(e, identities, func(e *codec.Encoder, v uint64) { e.WriteUint64(v) })
			var all uint32
			if waitAll {
				all = 1
			}
			e.WriteUint32(all)
			e.WriteUint64(timeoutNanos)
		},
		Decode: func(dec *codec.Decoder) { result = dec.ReadInt32() },
	})
	if err != nil {
		var lost *ring.DeviceLostError
		if asDeviceLostError(err, &lost) {
			for _, f := range fences {
				d.lifecycle.SetFenceSignaled(f, false)
			}
		}
		return err
	}
	if result != 0 {
		return &ring.VulkanError{Result: ring.Result(result), Op: "vkWaitForFences"}
	}
	for _, f := range fences {
		d.lifecycle.SetFenceSignaled(f, true)
	}
	return nil
}

// --- Queue submission ---

// QueueSubmit submits the named command buffers for execution on queue
// and, per this driver's Open Question resolution, advances no command
// buffer state itself (vkEndCommandBuffer already moved them to
// EXECUTABLE; submission does not change lifecycle state further).
func (d *Driver) QueueSubmit(queue objid.QueueHandle, buffers []objid.CommandBufferHandle, fence objid.FenceHandle) error {
	q, err := d.table.Queues.Get(queue)
	if err != nil {
		return fmt.Errorf("vkmirror: queue submit: %w", err)
	}
	for _, cb := range buffers {
		state, err := d.table.CommandBuffers.Get(cb)
		if err != nil {
			return fmt.Errorf("vkmirror: queue submit: %w", err)
		}
		if state.State != registry.CommandBufferExecutable {
			return fmt.Errorf("vkmirror: queue submit: command buffer not EXECUTABLE: %w", lifecycle.ErrWrongState)
		}
	}

	identities := make([]uint64, 0, len(buffers))
	var ops []registry.RecordedOp
	for _, cb := range buffers {
		state, _ := d.table.CommandBuffers.Get(cb)
		identities = append(identities, uint64(state.Server))
		// Recorded ops flatten into program order across the submitted
		// buffers, matching how the server will replay them sequentially.
		ops = append(ops, state.Recorded...)
	}
	var fenceServer uint64
	if !fence.IsZero() {
		f, err := d.table.Fences.Get(fence)
		if err != nil {
			return fmt.Errorf("vkmirror: queue submit: %w", err)
		}
		fenceServer = uint64(f.Server)
	}

	var result int32
	err = d.submit(q.Parent, ring.Call{
		CommandType: cmdQueueSubmit,
		ExpectReply: true,
		SizeHint:    64 + 64*len(ops),
		Encode: func(e *codec.Encoder) {
			e.WriteHandle(q.Server)
			codec.WriteCountedArray(e, identities, func(e *codec.Encoder, v uint64) { e.WriteUint64(v) })
			e.WriteUint64(fenceServer)
			codec.WriteCountedArray(e, ops, encodeRecordedOp)
		},
		Decode: func(dec *codec.Decoder) { result = dec.ReadInt32() },
	})
	if err != nil {
		var lost *ring.DeviceLostError
		if asDeviceLostError(err, &lost) {
			for _, cb := range buffers {
				d.lifecycle.Invalidate(cb)
			}
		}
		return err
	}
	if result != 0 {
		return &ring.VulkanError{Result: ring.Result(result), Op: "vkQueueSubmit"}
	}
	return nil
}

// DeviceWaitIdle blocks until every queue on device has drained.
func (d *Driver) DeviceWaitIdle(device objid.DeviceHandle) error {
	dev, err := d.table.Devices.Get(device)
	if err != nil {
		return fmt.Errorf("vkmirror: device wait idle: %w", err)
	}
	var result int32
	err = d.submit(device, ring.Call{
		CommandType: cmdDeviceWaitIdle,
		ExpectReply: true,
		SizeHint:    8,
		Encode:      func(e *codec.Encoder) { e.WriteHandle(dev.Server) },
		Decode:      func(dec *codec.Decoder) { result = dec.ReadInt32() },
	})
	if err != nil {
		return err
	}
	if result != 0 {
		return &ring.VulkanError{Result: ring.Result(result), Op: "vkDeviceWaitIdle"}
	}
	return nil
}

// --- shadowmem.Transfer ---

// Push implements shadowmem.Transfer by issuing TRANSFER_MEMORY_DATA.
func (d *Driver) Push(mem objid.DeviceMemoryHandle, offset uint64, data []byte) error {
	m, err := d.table.Memories.Get(mem)
	if err != nil {
		return fmt.Errorf("vkmirror: push: %w", err)
	}
	req := wire.TransferMemoryDataRequest{MemoryHandle: uint64(m.Server), Offset: offset, Data: data}
	return d.submit(m.Parent, ring.Call{
		CommandType: wire.CommandTransferMemoryData,
		SizeHint:    32 + len(data),
		Encode:      func(e *codec.Encoder) { req.Encode(e) },
	})
}

// Pull implements shadowmem.Transfer by issuing READ_MEMORY_DATA.
func (d *Driver) Pull(mem objid.DeviceMemoryHandle, offset uint64, size uint64) ([]byte, error) {
	m, err := d.table.Memories.Get(mem)
	if err != nil {
		return nil, fmt.Errorf("vkmirror: pull: %w", err)
	}
	req := wire.ReadMemoryDataRequest{MemoryHandle: uint64(m.Server), Offset: offset, Size: size}
	var reply wire.ReadMemoryDataReply
	err = d.submit(m.Parent, ring.Call{
		CommandType: wire.CommandReadMemoryData,
		ExpectReply: true,
		SizeHint:    24,
		Encode:      func(e *codec.Encoder) { req.Encode(e) },
		Decode:      func(dec *codec.Decoder) { reply = wire.DecodeReadMemoryDataReply(dec, int(size)) },
	})
	if err != nil {
		return nil, err
	}
	if reply.Result != 0 {
		return nil, &ring.VulkanError{Result: ring.Result(reply.Result), Op: "READ_MEMORY_DATA"}
	}
	return reply.Data, nil
}
