package lifecycle

import (
	"fmt"

	"github.com/venusplus/vpls/internal/objid"
	"github.com/venusplus/vpls/internal/registry"
)

// SetFenceSignaled updates the cached signaled bit for fence. The cache
// is advisory only — the authoritative state is reconstructed by
// querying the server (spec.md §4.2, "Sync state").
func (t *Tracker) SetFenceSignaled(fence objid.FenceHandle, signaled bool) error {
	if err := t.table.Fences.GetMut(fence, func(f *registry.FenceState) {
		f.Signaled = signaled
	}); err != nil {
		return fmt.Errorf("lifecycle: set fence signaled: %w", err)
	}
	return nil
}

// FenceSignaled returns the cached signaled bit for fence.
func (t *Tracker) FenceSignaled(fence objid.FenceHandle) (bool, error) {
	f, err := t.table.Fences.Get(fence)
	if err != nil {
		return false, fmt.Errorf("lifecycle: fence signaled: %w", err)
	}
	return f.Signaled, nil
}

// SetBinarySemaphoreSignaled updates the cached signaled bit for a
// binary semaphore. Calling this on a timeline semaphore is a caller
// error but not distinguished here; vkmirror is responsible for routing
// by SemaphoreKind.
func (t *Tracker) SetBinarySemaphoreSignaled(sem objid.SemaphoreHandle, signaled bool) error {
	if err := t.table.Semaphores.GetMut(sem, func(s *registry.SemaphoreState) {
		s.Signaled = signaled
	}); err != nil {
		return fmt.Errorf("lifecycle: set semaphore signaled: %w", err)
	}
	return nil
}

// BinarySemaphoreSignaled returns the cached signaled bit.
func (t *Tracker) BinarySemaphoreSignaled(sem objid.SemaphoreHandle) (bool, error) {
	s, err := t.table.Semaphores.Get(sem)
	if err != nil {
		return false, fmt.Errorf("lifecycle: semaphore signaled: %w", err)
	}
	return s.Signaled, nil
}

// UpdateTimelineValue advances sem's cached timeline value to newValue.
// Updates that would decrease the value are ignored: the tracker
// guarantees its cached value is monotonic non-decreasing (spec.md
// §4.2, §3).
func (t *Tracker) UpdateTimelineValue(sem objid.SemaphoreHandle, newValue uint64) error {
	return t.table.Semaphores.GetMut(sem, func(s *registry.SemaphoreState) {
		if newValue > s.TimelineValue {
			s.TimelineValue = newValue
		}
	})
}

// TimelineValue returns sem's cached timeline value.
func (t *Tracker) TimelineValue(sem objid.SemaphoreHandle) (uint64, error) {
	s, err := t.table.Semaphores.Get(sem)
	if err != nil {
		return 0, fmt.Errorf("lifecycle: timeline value: %w", err)
	}
	return s.TimelineValue, nil
}

// Note: there is deliberately no EventSignaled/SetEventSignaled pair
// here. The registry's EventState bucket exists purely so remove_device
// has a uniform cascade target across all sync-object categories; event
// status reads always round-trip to the server rather than trusting a
// local cache (see SPEC_FULL.md's Open Question decisions).
