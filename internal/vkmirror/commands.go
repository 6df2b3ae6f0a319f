package vkmirror

import (
	"github.com/venusplus/vpls/internal/codec"
	"github.com/venusplus/vpls/internal/registry"
)

// Command-type discriminants for the hand-written subset of Vulkan
// calls this driver exercises (SPEC_FULL.md notes the full Vulkan XML
// registry template generator is out of scope; this is the enumerated
// subset the end-to-end scenarios in spec.md §8 actually drive).
// Discriminant 1 is pinned by spec.md §8 scenario 1
// ("vkEnumerateInstanceVersion (discriminant = 1)"); the rest are
// assigned in call order.
const (
	cmdEnumerateInstanceVersion uint32 = 1
	cmdCreateInstance           uint32 = 2
	cmdDestroyInstance          uint32 = 3
	cmdEnumeratePhysicalDevices uint32 = 4
	cmdGetPhysicalDeviceProperties uint32 = 5
	cmdCreateDevice             uint32 = 6
	cmdDestroyDevice            uint32 = 7
	cmdGetDeviceQueue           uint32 = 8
	cmdAllocateMemory           uint32 = 9
	cmdFreeMemory               uint32 = 10
	cmdCreateBuffer             uint32 = 11
	cmdDestroyBuffer            uint32 = 12
	cmdBindBufferMemory         uint32 = 13
	cmdGetBufferMemoryRequirements uint32 = 14
	cmdCreateFence              uint32 = 15
	cmdDestroyFence             uint32 = 16
	cmdGetFenceStatus           uint32 = 17
	cmdResetFences              uint32 = 18
	cmdWaitForFences            uint32 = 19
	cmdCreateCommandPool        uint32 = 20
	cmdAllocateCommandBuffers   uint32 = 21
	cmdQueueSubmit              uint32 = 22
	cmdDeviceWaitIdle           uint32 = 23
)

// apiVersion1_3 is VK_API_VERSION_1_3 as spec.md §8 scenario 1 names it.
const apiVersion1_3 uint32 = 0x00403000

// encodeRecordedOp writes one RecordedOp in the fixed layout
// internal/serverdispatch decodes: kind, src, dst, srcOffset, dstOffset,
// size (all uint64 except kind/fillData), fillData. Unused fields for a
// given kind are still written as zero so the layout stays fixed-width,
// matching spec.md §4.1's "arrays of scalars encode as contiguous
// bytes" rule rather than a tagged variable-width record.
func encodeRecordedOp(e *codec.Encoder, op registry.RecordedOp) {
	e.WriteUint32(uint32(op.Kind))
	e.WriteUint64(uint64(op.Src))
	e.WriteUint64(uint64(op.Dst))
	e.WriteUint64(op.SrcOffset)
	e.WriteUint64(op.DstOffset)
	e.WriteUint64(op.Size)
	e.WriteUint32(op.FillData)
}
