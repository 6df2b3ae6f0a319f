package lifecycle

import (
	"testing"

	"github.com/venusplus/vpls/internal/registry"
)

func TestTracker_FenceSignaledCache(t *testing.T) {
	tbl := registry.NewTable()
	tr := NewTracker(tbl)
	dev := tbl.Devices.Add(registry.Device{})
	fence := tbl.Fences.Add(registry.FenceState{Parent: dev})

	if got, err := tr.FenceSignaled(fence); err != nil || got {
		t.Fatalf("FenceSignaled() initial = (%v, %v), want (false, nil)", got, err)
	}

	if err := tr.SetFenceSignaled(fence, true); err != nil {
		t.Fatalf("SetFenceSignaled() error = %v", err)
	}
	if got, err := tr.FenceSignaled(fence); err != nil || !got {
		t.Fatalf("FenceSignaled() after set = (%v, %v), want (true, nil)", got, err)
	}
}

func TestTracker_BinarySemaphoreSignaledCache(t *testing.T) {
	tbl := registry.NewTable()
	tr := NewTracker(tbl)
	dev := tbl.Devices.Add(registry.Device{})
	sem := tbl.Semaphores.Add(registry.SemaphoreState{Parent: dev, Kind: registry.SemaphoreBinary})

	if err := tr.SetBinarySemaphoreSignaled(sem, true); err != nil {
		t.Fatalf("SetBinarySemaphoreSignaled() error = %v", err)
	}
	got, err := tr.BinarySemaphoreSignaled(sem)
	if err != nil || !got {
		t.Fatalf("BinarySemaphoreSignaled() = (%v, %v), want (true, nil)", got, err)
	}
}

func TestTracker_TimelineValueMonotonic(t *testing.T) {
	tbl := registry.NewTable()
	tr := NewTracker(tbl)
	dev := tbl.Devices.Add(registry.Device{})
	sem := tbl.Semaphores.Add(registry.SemaphoreState{Parent: dev, Kind: registry.SemaphoreTimeline})

	if err := tr.UpdateTimelineValue(sem, 5); err != nil {
		t.Fatalf("UpdateTimelineValue(5) error = %v", err)
	}
	if err := tr.UpdateTimelineValue(sem, 3); err != nil {
		t.Fatalf("UpdateTimelineValue(3) error = %v", err)
	}
	got, err := tr.TimelineValue(sem)
	if err != nil {
		t.Fatalf("TimelineValue() error = %v", err)
	}
	if got != 5 {
		t.Errorf("TimelineValue() = %d, want 5 (decreasing update must be ignored)", got)
	}

	if err := tr.UpdateTimelineValue(sem, 9); err != nil {
		t.Fatalf("UpdateTimelineValue(9) error = %v", err)
	}
	got, _ = tr.TimelineValue(sem)
	if got != 9 {
		t.Errorf("TimelineValue() = %d, want 9", got)
	}
}
