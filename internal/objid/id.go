// Package objid defines the client-visible handle types the object
// registry keys on, and the server identities those handles resolve to.
//
// A client handle is an opaque, process-local key: an index into a
// registry slot array plus an epoch that invalidates stale handles after
// their slot is recycled. It is never dereferenced. A server identity is
// a bare uint64 defined only by the wire protocol (§6); the codec never
// interprets it either.
package objid

import "fmt"

// Index is the slot-array index component of a client handle.
type Index = uint32

// Epoch is the generation component of a client handle. Incrementing the
// epoch on release invalidates every handle still referencing the old
// generation of a recycled slot.
type Epoch = uint32

// RawHandle is the 64-bit packed representation of a client handle.
// Layout: lower 32 bits = index, upper 32 bits = epoch.
type RawHandle uint64

// Zip packs an index and epoch into a RawHandle.
func Zip(index Index, epoch Epoch) RawHandle {
	return RawHandle(index) | (RawHandle(epoch) << 32)
}

// Unzip extracts the index and epoch from a RawHandle.
func (h RawHandle) Unzip() (Index, Epoch) {
	//nolint:gosec // masked to 32 bits
	return Index(h & 0xFFFFFFFF), Epoch(h >> 32)
}

// Index returns the index component of the handle.
func (h RawHandle) Index() Index {
	//nolint:gosec // masked to 32 bits
	return Index(h & 0xFFFFFFFF)
}

// Epoch returns the epoch component of the handle.
func (h RawHandle) Epoch() Epoch {
	//nolint:gosec // shifted down from upper 32 bits
	return Epoch(h >> 32)
}

// IsZero reports whether both index and epoch are zero, i.e. the handle
// was never allocated.
func (h RawHandle) IsZero() bool {
	return h == 0
}

func (h RawHandle) String() string {
	index, epoch := h.Unzip()
	return fmt.Sprintf("Handle(%d,%d)", index, epoch)
}

// Category is a constraint for marker types that distinguish handle
// kinds at compile time. Marker types are empty structs; the unexported
// method prevents external packages from minting new categories.
type Category interface {
	category()
}

// Handle is a type-safe client handle parameterized by object category.
// Different object categories (Device, Buffer, Fence, ...) use different
// marker types, so a BufferHandle can never be passed where a
// DeviceHandle is expected.
type Handle[T Category] struct {
	raw RawHandle
}

// NewHandle builds a Handle from its index/epoch components.
func NewHandle[T Category](index Index, epoch Epoch) Handle[T] {
	return Handle[T]{raw: Zip(index, epoch)}
}

// FromRaw reinterprets a RawHandle as a typed Handle. Callers must ensure
// the raw value actually came from this category's registry.
func FromRaw[T Category](raw RawHandle) Handle[T] {
	return Handle[T]{raw: raw}
}

// Raw returns the handle's packed representation.
func (h Handle[T]) Raw() RawHandle {
	return h.raw
}

// Unzip extracts the index and epoch components.
func (h Handle[T]) Unzip() (Index, Epoch) {
	return h.raw.Unzip()
}

// Index returns the index component.
func (h Handle[T]) Index() Index {
	return h.raw.Index()
}

// Epoch returns the epoch component.
func (h Handle[T]) Epoch() Epoch {
	return h.raw.Epoch()
}

// IsZero reports whether the handle is the zero (never-allocated) value.
func (h Handle[T]) IsZero() bool {
	return h.raw.IsZero()
}

func (h Handle[T]) String() string {
	return h.raw.String()
}

// ServerIdentity is the 64-bit value the server uses to name the object
// this handle maps to. It is exchanged verbatim on the wire and is
// meaningful only within its object category's namespace (mirroring
// VkObjectType); the codec never dereferences it.
type ServerIdentity uint64

// IsZero reports whether the identity is unset.
func (s ServerIdentity) IsZero() bool {
	return s == 0
}

// Marker types, one per tracked Vulkan object category (spec.md §3).

type InstanceCategory struct{}

func (InstanceCategory) category() {}

type PhysicalDeviceCategory struct{}

func (PhysicalDeviceCategory) category() {}

type DeviceCategory struct{}

func (DeviceCategory) category() {}

type QueueCategory struct{}

func (QueueCategory) category() {}

type CommandPoolCategory struct{}

func (CommandPoolCategory) category() {}

type CommandBufferCategory struct{}

func (CommandBufferCategory) category() {}

type BufferCategory struct{}

func (BufferCategory) category() {}

type ImageCategory struct{}

func (ImageCategory) category() {}

type DeviceMemoryCategory struct{}

func (DeviceMemoryCategory) category() {}

type FenceCategory struct{}

func (FenceCategory) category() {}

type SemaphoreCategory struct{}

func (SemaphoreCategory) category() {}

type EventCategory struct{}

func (EventCategory) category() {}

type QueryPoolCategory struct{}

func (QueryPoolCategory) category() {}

// Type aliases giving each category a readable handle name.

// InstanceHandle identifies a VkInstance proxy.
type InstanceHandle = Handle[InstanceCategory]

// PhysicalDeviceHandle identifies a VkPhysicalDevice proxy.
type PhysicalDeviceHandle = Handle[PhysicalDeviceCategory]

// DeviceHandle identifies a VkDevice proxy.
type DeviceHandle = Handle[DeviceCategory]

// QueueHandle identifies a VkQueue proxy.
type QueueHandle = Handle[QueueCategory]

// CommandPoolHandle identifies a VkCommandPool proxy.
type CommandPoolHandle = Handle[CommandPoolCategory]

// CommandBufferHandle identifies a VkCommandBuffer proxy.
type CommandBufferHandle = Handle[CommandBufferCategory]

// BufferHandle identifies a VkBuffer proxy.
type BufferHandle = Handle[BufferCategory]

// ImageHandle identifies a VkImage proxy.
type ImageHandle = Handle[ImageCategory]

// DeviceMemoryHandle identifies a VkDeviceMemory proxy.
type DeviceMemoryHandle = Handle[DeviceMemoryCategory]

// FenceHandle identifies a VkFence proxy.
type FenceHandle = Handle[FenceCategory]

// SemaphoreHandle identifies a VkSemaphore proxy.
type SemaphoreHandle = Handle[SemaphoreCategory]

// EventHandle identifies a VkEvent proxy.
type EventHandle = Handle[EventCategory]

// QueryPoolHandle identifies a VkQueryPool proxy.
type QueryPoolHandle = Handle[QueryPoolCategory]
