package resource

import (
	"errors"
	"testing"

	"github.com/venusplus/vpls/internal/objid"
	"github.com/venusplus/vpls/internal/registry"
)

func TestTracker_BufferBindCascade(t *testing.T) {
	// spec.md §8 scenario 3.
	tbl := registry.NewTable()
	tr := NewTracker(tbl)
	dev := tbl.Devices.Add(registry.Device{})

	mem := tbl.Memories.Add(registry.DeviceMemory{Parent: dev, Size: 1 << 20})
	buf := tbl.Buffers.Add(registry.Buffer{Parent: dev, Size: 1 << 20, Usage: 0x3})

	if err := tr.BindBuffer(buf, mem, 0); err != nil {
		t.Fatalf("BindBuffer() error = %v", err)
	}

	m, _ := tbl.Memories.Get(mem)
	if len(m.BoundBuffers) != 1 || m.BoundBuffers[0] != buf {
		t.Fatalf("memories[m].bound_buffers = %v, want [%v]", m.BoundBuffers, buf)
	}
	b, _ := tbl.Buffers.Get(buf)
	if b.BoundMemory != mem {
		t.Fatalf("buffers[b].bound_memory = %v, want %v", b.BoundMemory, mem)
	}

	if err := tr.UnbindBuffer(buf); err != nil {
		t.Fatalf("UnbindBuffer() error = %v", err)
	}
	b, _ = tbl.Buffers.Get(buf)
	var zero objid.DeviceMemoryHandle
	if b.BoundMemory != zero {
		t.Errorf("buffers[b].bound_memory = %v, want null after unbind", b.BoundMemory)
	}
	m, _ = tbl.Memories.Get(mem)
	if len(m.BoundBuffers) != 0 {
		t.Errorf("memories[m].bound_buffers = %v, want empty after unbind", m.BoundBuffers)
	}
}

func TestTracker_BindBuffer_AlreadyBound(t *testing.T) {
	tbl := registry.NewTable()
	tr := NewTracker(tbl)
	dev := tbl.Devices.Add(registry.Device{})
	mem1 := tbl.Memories.Add(registry.DeviceMemory{Parent: dev, Size: 4096})
	mem2 := tbl.Memories.Add(registry.DeviceMemory{Parent: dev, Size: 4096})
	buf := tbl.Buffers.Add(registry.Buffer{Parent: dev, Size: 256})

	if err := tr.BindBuffer(buf, mem1, 0); err != nil {
		t.Fatalf("first BindBuffer() error = %v", err)
	}
	if err := tr.BindBuffer(buf, mem2, 0); !errors.Is(err, ErrAlreadyBound) {
		t.Errorf("second BindBuffer() error = %v, want ErrAlreadyBound", err)
	}
}

func TestTracker_UnbindBuffer_NeverBoundIsNoOp(t *testing.T) {
	tbl := registry.NewTable()
	tr := NewTracker(tbl)
	dev := tbl.Devices.Add(registry.Device{})
	buf := tbl.Buffers.Add(registry.Buffer{Parent: dev, Size: 256})

	if err := tr.UnbindBuffer(buf); err != nil {
		t.Fatalf("UnbindBuffer() on never-bound buffer error = %v, want nil", err)
	}
}

func TestTracker_BindImageCascade(t *testing.T) {
	tbl := registry.NewTable()
	tr := NewTracker(tbl)
	dev := tbl.Devices.Add(registry.Device{})
	mem := tbl.Memories.Add(registry.DeviceMemory{Parent: dev, Size: 1 << 20})
	img := tbl.Images.Add(registry.Image{Parent: dev, Extent: registry.Extent3D{Width: 256, Height: 256, Depth: 1}})

	if err := tr.BindImage(img, mem, 512); err != nil {
		t.Fatalf("BindImage() error = %v", err)
	}
	m, _ := tbl.Memories.Get(mem)
	if len(m.BoundImages) != 1 || m.BoundImages[0] != img {
		t.Fatalf("memories[m].bound_images = %v, want [%v]", m.BoundImages, img)
	}

	if err := tr.UnbindImage(img); err != nil {
		t.Fatalf("UnbindImage() error = %v", err)
	}
	m, _ = tbl.Memories.Get(mem)
	if len(m.BoundImages) != 0 {
		t.Errorf("memories[m].bound_images = %v, want empty after unbind", m.BoundImages)
	}
}

func TestTracker_BindBuffer_UnknownMemory(t *testing.T) {
	tbl := registry.NewTable()
	tr := NewTracker(tbl)
	dev := tbl.Devices.Add(registry.Device{})
	buf := tbl.Buffers.Add(registry.Buffer{Parent: dev, Size: 256})

	var bogus objid.DeviceMemoryHandle
	if err := tr.BindBuffer(buf, bogus, 0); err == nil {
		t.Error("BindBuffer() with unknown memory should fail")
	}
}

func TestTracker_RequirementsCached(t *testing.T) {
	tbl := registry.NewTable()
	tr := NewTracker(tbl)
	dev := tbl.Devices.Add(registry.Device{})
	buf := tbl.Buffers.Add(registry.Buffer{Parent: dev, Size: 256})

	calls := 0
	compute := func() registry.MemoryRequirements {
		calls++
		return registry.MemoryRequirements{Size: 256, Alignment: 16, MemoryTypeBits: 0x7}
	}

	first, err := tr.BufferRequirements(buf, compute)
	if err != nil {
		t.Fatalf("first BufferRequirements() error = %v", err)
	}
	second, err := tr.BufferRequirements(buf, compute)
	if err != nil {
		t.Fatalf("second BufferRequirements() error = %v", err)
	}
	if first != second {
		t.Errorf("cached requirements differ: %+v vs %+v", first, second)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1 (cached on second query)", calls)
	}
}

func TestTracker_ImageRequirementsCached(t *testing.T) {
	tbl := registry.NewTable()
	tr := NewTracker(tbl)
	dev := tbl.Devices.Add(registry.Device{})
	img := tbl.Images.Add(registry.Image{Parent: dev})

	calls := 0
	compute := func() registry.MemoryRequirements {
		calls++
		return registry.MemoryRequirements{Size: 4096, Alignment: 256, MemoryTypeBits: 0x1}
	}

	if _, err := tr.ImageRequirements(img, compute); err != nil {
		t.Fatalf("ImageRequirements() error = %v", err)
	}
	if _, err := tr.ImageRequirements(img, compute); err != nil {
		t.Fatalf("ImageRequirements() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
}
