package registry

import "github.com/venusplus/vpls/internal/objid"

// Instance is the shadow state for a VkInstance proxy (spec.md §3).
type Instance struct {
	Server             objid.ServerIdentity
	EnabledExtensions  []string
}

// PhysicalDevice is the shadow state for a VkPhysicalDevice proxy.
// Cached properties are immutable once the instance has returned them
// (spec.md §3, §4.5).
type PhysicalDevice struct {
	Parent     objid.InstanceHandle
	Server     objid.ServerIdentity
	Properties PhysicalDeviceProperties
}

// PhysicalDeviceProperties is the subset of VkPhysicalDeviceProperties
// (plus memory/queue-family info) the fake GPU metadata provider hands
// back and the client caches for the instance's lifetime.
type PhysicalDeviceProperties struct {
	DeviceName          string
	APIVersion          uint32
	DriverVersion       uint32
	VendorID            uint32
	DeviceID            uint32
	MaxImageDimension2D uint32
	MemoryHeapCount     uint32
	MemoryTypeCount     uint32
	QueueFamilyCount    uint32
}

// Device is the shadow state for a VkDevice proxy. It owns every derived
// object category per spec.md §3's ownership rules.
type Device struct {
	Parent            objid.PhysicalDeviceHandle
	Server            objid.ServerIdentity
	APIVersion        uint32
	EnabledExtensions []string
	Queues            []objid.QueueHandle
	Lost              bool
}

// Queue is the shadow state for a VkQueue proxy. Identity is stable for
// the owning device's entire lifetime.
type Queue struct {
	Parent      objid.DeviceHandle
	Server      objid.ServerIdentity
	FamilyIndex uint32
	Index       uint32
}

// CommandPool is the shadow state for a VkCommandPool proxy.
type CommandPool struct {
	Parent          objid.DeviceHandle
	Server          objid.ServerIdentity
	CreateFlags     uint32
	QueueFamily     uint32
	CommandBuffers  []objid.CommandBufferHandle
}

// CommandBufferState is the lifecycle state machine defined in spec.md §3:
// INITIAL -begin-> RECORDING -end-> EXECUTABLE -reset|begin-> INITIAL|RECORDING.
type CommandBufferState int32

const (
	// CommandBufferInitial is the state after allocation or reset.
	CommandBufferInitial CommandBufferState = iota
	// CommandBufferRecording is the state between vkBeginCommandBuffer and vkEndCommandBuffer.
	CommandBufferRecording
	// CommandBufferExecutable is the state after a successful vkEndCommandBuffer.
	CommandBufferExecutable
	// CommandBufferInvalid is sticky until the buffer is reset or re-recorded.
	CommandBufferInvalid
)

func (s CommandBufferState) String() string {
	switch s {
	case CommandBufferInitial:
		return "INITIAL"
	case CommandBufferRecording:
		return "RECORDING"
	case CommandBufferExecutable:
		return "EXECUTABLE"
	case CommandBufferInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// DescriptorBindSnapshot is the last bindDescriptorSets tuple recorded
// for one bind point on a command buffer, used for dirty-elision
// (spec.md §4.2).
type DescriptorBindSnapshot struct {
	Valid           bool
	BindPoint       uint32
	PipelineLayout  objid.ServerIdentity
	FirstSet        uint32
	Sets            []objid.ServerIdentity
	DynamicOffsets  []uint32
}

// CommandBuffer is the shadow state for a VkCommandBuffer proxy.
type CommandBuffer struct {
	Parent          objid.CommandPoolHandle
	Server          objid.ServerIdentity
	Level           uint32
	State           CommandBufferState
	UsageFlags      uint32
	BindSnapshots   map[uint32]DescriptorBindSnapshot // keyed by bind point
	Recorded        []RecordedOp
}

// RecordedOpKind discriminates the transfer-shaped commands a command
// buffer can record (spec.md §8 scenario 5: vkCmdCopyBuffer,
// vkCmdFillBuffer). Only these two are modeled; draw/dispatch/barrier
// commands are out of scope (see SPEC_FULL.md Non-goals).
type RecordedOpKind uint32

const (
	// RecordedOpCopyBuffer mirrors vkCmdCopyBuffer(srcBuffer, dstBuffer, ...).
	RecordedOpCopyBuffer RecordedOpKind = 1
	// RecordedOpFillBuffer mirrors vkCmdFillBuffer(dstBuffer, offset, size, data).
	RecordedOpFillBuffer RecordedOpKind = 2
)

// RecordedOp is one vkCmdCopyBuffer/vkCmdFillBuffer entry recorded into
// a command buffer's shadow state. The server identities of the buffers
// involved are captured at record time (not replay time), matching
// Vulkan's command-buffer semantics: what gets submitted is whatever
// was bound when the command was recorded.
type RecordedOp struct {
	Kind       RecordedOpKind
	Src        objid.ServerIdentity // CopyBuffer only
	Dst        objid.ServerIdentity
	SrcOffset  uint64 // CopyBuffer only
	DstOffset  uint64
	Size       uint64
	FillData   uint32 // FillBuffer only
}

// Buffer is the shadow state for a VkBuffer proxy.
type Buffer struct {
	Parent       objid.DeviceHandle
	Server       objid.ServerIdentity
	Size         uint64
	Usage        uint32
	SharingMode  uint32
	BoundMemory  objid.DeviceMemoryHandle // zero if unbound
	BoundOffset  uint64
	Requirements *MemoryRequirements // cached on first query, nil otherwise
}

// Image is the shadow state for a VkImage proxy.
type Image struct {
	Parent       objid.DeviceHandle
	Server       objid.ServerIdentity
	ImageType    uint32
	Format       uint32
	Extent       Extent3D
	MipLevels    uint32
	ArrayLayers  uint32
	Samples      uint32
	Tiling       uint32
	Usage        uint32
	Flags        uint32
	BoundMemory  objid.DeviceMemoryHandle
	BoundOffset  uint64
	Requirements *MemoryRequirements
}

// Extent3D mirrors VkExtent3D.
type Extent3D struct {
	Width, Height, Depth uint32
}

// MemoryRequirements mirrors VkMemoryRequirements; cached per buffer/image
// so a repeated query is answered locally (original_source/client/state/resource_state.cpp).
type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// DeviceMemory is the shadow state for a VkDeviceMemory proxy. The
// back-reference slices are weak cross-indexes used only for cascade
// cleanup, never for ownership (spec.md §3, "Ownership in design terms").
type DeviceMemory struct {
	Parent        objid.DeviceHandle
	Server        objid.ServerIdentity
	Size          uint64
	TypeIndex     uint32
	BoundBuffers  []objid.BufferHandle
	BoundImages   []objid.ImageHandle
}

// FenceState is the shadow state for a VkFence proxy. The signaled bit is
// a cache only; the server is authoritative (spec.md §3).
type FenceState struct {
	Parent    objid.DeviceHandle
	Server    objid.ServerIdentity
	Signaled  bool
}

// SemaphoreKind distinguishes binary from timeline semaphores.
type SemaphoreKind int

const (
	// SemaphoreBinary is a boolean-signaled semaphore.
	SemaphoreBinary SemaphoreKind = iota
	// SemaphoreTimeline is a monotonically non-decreasing uint64 payload.
	SemaphoreTimeline
)

// SemaphoreState is the shadow state for a VkSemaphore proxy.
type SemaphoreState struct {
	Parent       objid.DeviceHandle
	Server       objid.ServerIdentity
	Kind         SemaphoreKind
	Signaled     bool   // meaningful only for SemaphoreBinary
	TimelineValue uint64 // meaningful only for SemaphoreTimeline; monotone
}

// EventState is the shadow state for a VkEvent proxy. Per spec.md §9 /
// SPEC_FULL.md's Open Question decisions, this bucket exists purely so
// remove_device's cascade has a uniform target; its Signaled field is
// never consulted for a status read (internal/lifecycle/sync.go forces a
// round-trip instead).
type EventState struct {
	Parent   objid.DeviceHandle
	Server   objid.ServerIdentity
	Signaled bool
}

// QueryPool is the shadow state for a VkQueryPool proxy.
type QueryPool struct {
	Parent          objid.DeviceHandle
	Server          objid.ServerIdentity
	QueryType       uint32
	QueryCount      uint32
	StatisticFlags  uint32
}
