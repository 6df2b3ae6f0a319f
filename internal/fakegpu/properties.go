// Package fakegpu is the server-side Fake GPU Metadata Provider (spec.md
// §4.5): a fixed, internally consistent capability table plus the
// sync-object dispatcher that answers the wire protocol's fence,
// semaphore and event commands. Nothing here touches a real device —
// every value is either a constant from the table below or bookkeeping
// state this package owns outright.
package fakegpu

// MemoryHeap mirrors the subset of VkMemoryHeap the table needs to stay
// internally consistent: a size and whether it is device-local.
type MemoryHeap struct {
	Size       uint64
	DeviceLocal bool
}

// MemoryType mirrors VkMemoryType: a property-flag bitmask and the heap
// it draws from. HeapIndex must be a valid index into the table's Heaps.
type MemoryType struct {
	PropertyFlags uint32
	HeapIndex     uint32
}

// Memory property flag bits (VkMemoryPropertyFlagBits subset).
const (
	MemoryPropertyDeviceLocal     uint32 = 1 << 0
	MemoryPropertyHostVisible     uint32 = 1 << 1
	MemoryPropertyHostCoherent    uint32 = 1 << 2
	MemoryPropertyHostCached      uint32 = 1 << 3
	MemoryPropertyLazilyAllocated uint32 = 1 << 4
)

// QueueFamily mirrors VkQueueFamilyProperties.
type QueueFamily struct {
	QueueFlags uint32
	QueueCount uint32
}

// Queue flag bits (VkQueueFlagBits subset).
const (
	QueueGraphics uint32 = 1 << 0
	QueueCompute  uint32 = 1 << 1
	QueueTransfer uint32 = 1 << 2
)

// DeviceProperties is the fixed, internally consistent capability set
// the provider answers every vkGetPhysicalDeviceProperties-equivalent
// query with (spec.md §4.5). The client caches this verbatim per
// physical-device handle for the instance's lifetime; the server never
// varies it across queries.
type DeviceProperties struct {
	DeviceName            string
	APIVersion            uint32
	DriverVersion         uint32
	VendorID              uint32
	DeviceID              uint32
	MaxImageDimension2D   uint32
	MaxImageDimension3D   uint32
	MaxFramebufferWidth   uint32
	MaxFramebufferHeight  uint32
	MaxMemoryAllocationCount uint32
	Heaps                 []MemoryHeap
	Types                 []MemoryType
	QueueFamilies         []QueueFamily
}

// apiVersion packs a Vulkan API version the way VK_MAKE_API_VERSION
// does: variant(3) . major(7) . minor(10) . patch(12).
func apiVersion(variant, major, minor, patch uint32) uint32 {
	return (variant << 29) | (major << 22) | (minor << 12) | patch
}

// table is the single fixed capability set this provider hands out. It
// is built once and never mutated; Properties returns it by value so
// callers can't corrupt the shared table.
var table = DeviceProperties{
	DeviceName:               "Venus Plus Virtual GPU",
	APIVersion:               apiVersion(0, 1, 3, 0),
	DriverVersion:            apiVersion(0, 1, 0, 0),
	VendorID:                 0x10000,
	DeviceID:                 0x1,
	MaxImageDimension2D:      16384,
	MaxImageDimension3D:      2048,
	MaxFramebufferWidth:      16384,
	MaxFramebufferHeight:     16384,
	MaxMemoryAllocationCount: 4096,
	Heaps: []MemoryHeap{
		{Size: 8 << 30, DeviceLocal: true},  // device-local heap
		{Size: 16 << 30, DeviceLocal: false}, // host-visible heap
	},
	Types: []MemoryType{
		{PropertyFlags: MemoryPropertyDeviceLocal, HeapIndex: 0},
		{PropertyFlags: MemoryPropertyHostVisible | MemoryPropertyHostCoherent, HeapIndex: 1},
		{PropertyFlags: MemoryPropertyHostVisible | MemoryPropertyHostCoherent | MemoryPropertyHostCached, HeapIndex: 1},
	},
	QueueFamilies: []QueueFamily{
		{QueueFlags: QueueGraphics | QueueCompute | QueueTransfer, QueueCount: 1},
		{QueueFlags: QueueTransfer, QueueCount: 2},
	},
}

// Properties returns the fixed capability table (spec.md §4.5:
// "maxImageDimension2D >= maxFramebufferWidth; memory-type heap indices
// are valid"). The physical-device identity is accepted for call-shape
// symmetry with the rest of the dispatcher even though today's table
// does not vary per device.
func Properties(_ uint64) DeviceProperties {
	p := table
	p.Heaps = append([]MemoryHeap(nil), table.Heaps...)
	p.Types = append([]MemoryType(nil), table.Types...)
	p.QueueFamilies = append([]QueueFamily(nil), table.QueueFamilies...)
	return p
}

// HeapCount and TypeCount let callers size reply arrays without copying
// the whole table.
func (p DeviceProperties) HeapCount() uint32 { return uint32(len(p.Heaps)) }
func (p DeviceProperties) TypeCount() uint32 { return uint32(len(p.Types)) }
func (p DeviceProperties) QueueFamilyCount() uint32 { return uint32(len(p.QueueFamilies)) }
