// Package shadowmem implements the Host-Memory Shadow & Transfer Engine
// (spec.md §4.3): client-side byte buffers standing in for a mapped
// device-memory allocation, and the push/pull operations that keep them
// synchronized with the server.
//
// A ShadowMapping is keyed directly by the device-memory handle rather
// than minted through internal/registry.Registry: at most one mapping
// is live per allocation at a time (spec.md §3), which is a map
// invariant, not an allocation one.
package shadowmem

import (
	"errors"
	"sync"

	"github.com/venusplus/vpls/internal/objid"
)

// ErrAlreadyMapped is returned by Map when the allocation already has a
// live mapping.
var ErrAlreadyMapped = errors.New("shadowmem: allocation already mapped")

// ErrNotMapped is returned by operations that require a live mapping
// when none exists for the given allocation.
var ErrNotMapped = errors.New("shadowmem: allocation not mapped")

// Transfer pushes and pulls raw bytes to/from the server for a mapped
// allocation, fulfilling §4.3's push(allocation, offset, size, bytes)
// and pull(allocation, offset, size) -> bytes contract over the wire
// protocol's TRANSFER_MEMORY_DATA / READ_MEMORY_DATA commands.
type Transfer interface {
	Push(mem objid.DeviceMemoryHandle, offset uint64, data []byte) error
	Pull(mem objid.DeviceMemoryHandle, offset uint64, size uint64) ([]byte, error)
}

// Mapping is one allocation's shadow state: the zero-initialised client
// byte buffer plus the bookkeeping needed to push/pull the right window
// of it (spec.md §3, "ShadowMapping").
type Mapping struct {
	Device       objid.DeviceHandle
	Offset       uint64
	Size         uint64
	Data         []byte
	HostCoherent bool
}

// Manager owns every live mapping, one mutex guarding the whole map —
// mirrors the teacher's ShadowBufferManager: a single lock, a map keyed
// by the memory handle, and malloc/free replaced by Go slice allocation.
type Manager struct {
	mu       sync.Mutex
	mappings map[objid.DeviceMemoryHandle]*Mapping
	transfer Transfer
}

// NewManager builds an empty shadow-mapping manager backed by transfer
// for push/pull operations.
func NewManager(transfer Transfer) *Manager {
	return &Manager{
		mappings: make(map[objid.DeviceMemoryHandle]*Mapping),
		transfer: transfer,
	}
}

// Map creates a shadow buffer of size bytes for mem, pulls the server's
// current contents into it, and returns it, failing if mem already has
// a live mapping (spec.md §2: "on map for a coherent allocation, pulls
// the server's current contents"; the same pull applies to
// non-coherent allocations too, since the client has no other way to
// observe contents written through the server before this map, e.g. by
// a prior vkCmdCopyBuffer).
func (m *Manager) Map(device objid.DeviceHandle, mem objid.DeviceMemoryHandle, offset, size uint64, hostCoherent bool) ([]byte, error) {
	m.mu.Lock()
	if _, ok := m.mappings[mem]; ok {
		m.mu.Unlock()
		return nil, ErrAlreadyMapped
	}
	m.mu.Unlock()

	data := make([]byte, size)
	if m.transfer != nil && size > 0 {
		pulled, err := m.transfer.Pull(mem, offset, size)
		if err != nil {
			return nil, err
		}
		copy(data, pulled)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mappings[mem]; ok {
		return nil, ErrAlreadyMapped
	}
	m.mappings[mem] = &Mapping{
		Device:       device,
		Offset:       offset,
		Size:         size,
		Data:         data,
		HostCoherent: hostCoherent,
	}
	return data, nil
}

// Unmap removes mem's mapping and flushes it to the server: for
// non-coherent memory this is the required "flush on unmap" behavior;
// for coherent memory the flush happens unconditionally too, since the
// server has no other way to observe client-side writes (spec.md §4.3).
func (m *Manager) Unmap(mem objid.DeviceMemoryHandle) error {
	m.mu.Lock()
	mapping, ok := m.mappings[mem]
	if ok {
		delete(m.mappings, mem)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotMapped
	}
	if m.transfer == nil || len(mapping.Data) == 0 {
		return nil
	}
	return m.transfer.Push(mem, mapping.Offset, mapping.Data)
}

// IsMapped reports whether mem currently has a live mapping.
func (m *Manager) IsMapped(mem objid.DeviceMemoryHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.mappings[mem]
	return ok
}

// Get returns mem's live shadow buffer, if any.
func (m *Manager) Get(mem objid.DeviceMemoryHandle) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok := m.mappings[mem]
	if !ok {
		return nil, false
	}
	return mapping.Data, true
}

// RemoveDevice frees every mapping owned by device, as part of the
// device-destroy cascade (spec.md §3: "shadow mappings for that device
// are freed").
func (m *Manager) RemoveDevice(device objid.DeviceHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for mem, mapping := range m.mappings {
		if mapping.Device == device {
			delete(m.mappings, mem)
		}
	}
}

// Flush pushes [offset, offset+size) of mem's shadow buffer to the
// server, implementing vkFlushMappedMemoryRanges (spec.md §4.3).
func (m *Manager) Flush(mem objid.DeviceMemoryHandle, offset, size uint64) error {
	m.mu.Lock()
	mapping, ok := m.mappings[mem]
	m.mu.Unlock()
	if !ok {
		return ErrNotMapped
	}
	if m.transfer == nil {
		return nil
	}
	end := offset + size
	if end > uint64(len(mapping.Data)) {
		end = uint64(len(mapping.Data))
	}
	if offset > end {
		offset = end
	}
	return m.transfer.Push(mem, mapping.Offset+offset, mapping.Data[offset:end])
}

// Invalidate pulls [offset, offset+size) from the server into mem's
// shadow buffer, implementing vkInvalidateMappedMemoryRanges.
func (m *Manager) Invalidate(mem objid.DeviceMemoryHandle, offset, size uint64) error {
	m.mu.Lock()
	mapping, ok := m.mappings[mem]
	m.mu.Unlock()
	if !ok {
		return ErrNotMapped
	}
	if m.transfer == nil {
		return nil
	}
	bytes, err := m.transfer.Pull(mem, mapping.Offset+offset, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok = m.mappings[mem]
	if !ok {
		return ErrNotMapped
	}
	end := offset + uint64(len(bytes))
	if end > uint64(len(mapping.Data)) {
		end = uint64(len(mapping.Data))
	}
	copy(mapping.Data[offset:end], bytes)
	return nil
}
