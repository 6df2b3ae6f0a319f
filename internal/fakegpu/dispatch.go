package fakegpu

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Result mirrors VkResult for the handful of codes this package
// produces on its own; it is otherwise a plain int32, the same
// convention internal/ring uses on the client side.
type Result int32

const (
	ResultSuccess                  Result = 0
	ResultEventSet                 Result = 3
	ResultNotReady                 Result = 1
	ResultTimeout                  Result = 2
	ResultEventReset               Result = 4
	ResultErrorInitializationFailed Result = -3
	ResultErrorFeatureNotPresent    Result = -8
)

// SemaphoreKind mirrors VkSemaphoreType.
type SemaphoreKind int32

const (
	SemaphoreBinary   SemaphoreKind = 0
	SemaphoreTimeline SemaphoreKind = 1
)

// Handle ranges for each sync-object category, matching
// original_source/server/state/sync_manager.cpp's allocation scheme —
// disjoint ranges let a bare identity be recognized by category at a
// glance during debugging.
const (
	fenceHandleBase     uint64 = 0x80000000
	semaphoreHandleBase uint64 = 0x90000000
	eventHandleBase     uint64 = 0xa0000000
)

type fenceEntry struct {
	device   uint64
	signaled bool
}

type semaphoreEntry struct {
	device         uint64
	kind           SemaphoreKind
	binarySignaled bool
	timelineValue  uint64
}

type eventEntry struct {
	device   uint64
	signaled bool
}

// Dispatcher owns the server's fence/semaphore/event state. Every
// method takes the owning device identity explicitly rather than
// storing one, per the canonical call shape original_source's
// sync_manager.cpp exposes (SPEC_FULL.md Open Question decision 3) —
// there is no "current device"; each call names its own.
//
// Nothing here issues a real Vulkan call: the fake GPU answers from its
// own bookkeeping only (spec.md §4.5).
type Dispatcher struct {
	mu sync.Mutex

	fences     map[uint64]fenceEntry
	semaphores map[uint64]semaphoreEntry
	events     map[uint64]eventEntry

	nextFence     uint64
	nextSemaphore uint64
	nextEvent     uint64
}

// NewDispatcher builds an empty dispatcher with freshly seeded handle
// counters.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{}
	d.reset()
	return d
}

func (d *Dispatcher) reset() {
	d.fences = make(map[uint64]fenceEntry)
	d.semaphores = make(map[uint64]semaphoreEntry)
	d.events = make(map[uint64]eventEntry)
	d.nextFence = fenceHandleBase
	d.nextSemaphore = semaphoreHandleBase
	d.nextEvent = eventHandleBase
}

// Reset clears every tracked sync object and reseeds handle counters,
// mirroring sync_manager.cpp's reset().
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
}

// --- Fences ---

// CreateFence allocates a fence owned by device, initially signaled iff
// signaled is set (mirrors VK_FENCE_CREATE_SIGNALED_BIT).
func (d *Dispatcher) CreateFence(device uint64, signaled bool) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	handle := d.nextFence
	d.nextFence++
	d.fences[handle] = fenceEntry{device: device, signaled: signaled}
	fencesCreatedTotal.Inc()
	return handle
}

// DestroyFence removes fence. Destroying an unknown fence is a no-op
// reported via the bool return, matching sync_manager.cpp's
// destroy_fence.
func (d *Dispatcher) DestroyFence(fence uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fences[fence]; !ok {
		return false
	}
	delete(d.fences, fence)
	return true
}

// FenceStatus reports whether fence is signaled.
func (d *Dispatcher) FenceStatus(fence uint64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.fences[fence]
	if !ok {
		return ResultErrorInitializationFailed
	}
	if entry.signaled {
		return ResultSuccess
	}
	return ResultNotReady
}

// ResetFences clears the signaled bit on every named fence. It fails
// atomically: if any handle is unknown, no fence is touched.
func (d *Dispatcher) ResetFences(fences []uint64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range fences {
		if _, ok := d.fences[f]; !ok {
			return ResultErrorInitializationFailed
		}
	}
	for _, f := range fences {
		entry := d.fences[f]
		entry.signaled = false
		d.fences[f] = entry
	}
	return ResultSuccess
}

// WaitForFences is the fake provider's stand-in for vkWaitForFences: it
// never blocks a real device, so it simply reports whether the
// requested condition already holds (waitAll requires every fence
// signaled, otherwise any one does).
func (d *Dispatcher) WaitForFences(fences []uint64, waitAll bool) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	anySignaled := false
	for _, f := range fences {
		entry, ok := d.fences[f]
		if !ok {
			return ResultErrorInitializationFailed
		}
		if entry.signaled {
			anySignaled = true
		} else if waitAll {
			return ResultTimeout
		}
	}
	if waitAll || anySignaled || len(fences) == 0 {
		return ResultSuccess
	}
	return ResultTimeout
}

// SignalFence marks fence signaled directly; the fixed table has no
// queue submission path of its own to drive this, so callers that
// simulate submission completion call this explicitly.
func (d *Dispatcher) SignalFence(fence uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.fences[fence]
	if !ok {
		return
	}
	entry.signaled = true
	d.fences[fence] = entry
}

// FenceExists reports whether fence is currently tracked.
func (d *Dispatcher) FenceExists(fence uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.fences[fence]
	return ok
}

// --- Semaphores ---

// CreateSemaphore allocates a semaphore of the given kind, owned by
// device, with the given initial timeline value (ignored for binary
// semaphores).
func (d *Dispatcher) CreateSemaphore(device uint64, kind SemaphoreKind, initialValue uint64) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	handle := d.nextSemaphore
	d.nextSemaphore++
	d.semaphores[handle] = semaphoreEntry{device: device, kind: kind, timelineValue: initialValue}
	semaphoresCreatedTotal.Inc()
	return handle
}

// DestroySemaphore removes semaphore, reporting whether it was known.
func (d *Dispatcher) DestroySemaphore(semaphore uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.semaphores[semaphore]; !ok {
		return false
	}
	delete(d.semaphores, semaphore)
	return true
}

// SemaphoreExists reports whether semaphore is currently tracked.
func (d *Dispatcher) SemaphoreExists(semaphore uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.semaphores[semaphore]
	return ok
}

// SemaphoreType returns semaphore's kind, or SemaphoreBinary for an
// unknown handle (mirroring sync_manager.cpp's get_semaphore_type,
// which returns VK_SEMAPHORE_TYPE_BINARY rather than an error).
func (d *Dispatcher) SemaphoreType(semaphore uint64) SemaphoreKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.semaphores[semaphore]
	if !ok {
		return SemaphoreBinary
	}
	return entry.kind
}

// ConsumeBinarySemaphore clears the signaled bit of a binary semaphore.
// A no-op on a timeline semaphore or unknown handle.
func (d *Dispatcher) ConsumeBinarySemaphore(semaphore uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.semaphores[semaphore]
	if !ok || entry.kind != SemaphoreBinary {
		return
	}
	entry.binarySignaled = false
	d.semaphores[semaphore] = entry
}

// SignalBinarySemaphore sets the signaled bit of a binary semaphore.
func (d *Dispatcher) SignalBinarySemaphore(semaphore uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.semaphores[semaphore]
	if !ok || entry.kind != SemaphoreBinary {
		return
	}
	entry.binarySignaled = true
	d.semaphores[semaphore] = entry
}

// BinarySemaphoreSignaled reports a binary semaphore's signaled bit.
func (d *Dispatcher) BinarySemaphoreSignaled(semaphore uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.semaphores[semaphore]
	if !ok {
		return false
	}
	return entry.binarySignaled
}

// TimelineValue reads a timeline semaphore's current value.
func (d *Dispatcher) TimelineValue(semaphore uint64) (uint64, Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.semaphores[semaphore]
	if !ok {
		return 0, ResultErrorInitializationFailed
	}
	if entry.kind != SemaphoreTimeline {
		return 0, ResultErrorFeatureNotPresent
	}
	return entry.timelineValue, ResultSuccess
}

// WaitTimelineValue advances the cached monotonic maximum; the fixed
// table has no real queue to block on, so waiting for a value succeeds
// immediately once it is recorded (sync_manager.cpp's wait_timeline_value
// does the same: it clamps upward rather than actually blocking).
func (d *Dispatcher) WaitTimelineValue(semaphore uint64, value uint64) Result {
	return d.SignalTimelineValue(semaphore, value)
}

// SignalTimelineValue advances semaphore's timeline value to
// max(current, value); it can never move backward.
func (d *Dispatcher) SignalTimelineValue(semaphore uint64, value uint64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.semaphores[semaphore]
	if !ok {
		return ResultErrorInitializationFailed
	}
	if entry.kind != SemaphoreTimeline {
		return ResultErrorFeatureNotPresent
	}
	if value > entry.timelineValue {
		entry.timelineValue = value
	}
	d.semaphores[semaphore] = entry
	return ResultSuccess
}

// --- Events ---

// CreateEvent allocates an event owned by device, initially unsignaled.
func (d *Dispatcher) CreateEvent(device uint64) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	handle := d.nextEvent
	d.nextEvent++
	d.events[handle] = eventEntry{device: device}
	return handle
}

// DestroyEvent removes event, reporting whether it was known.
func (d *Dispatcher) DestroyEvent(event uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.events[event]; !ok {
		return false
	}
	delete(d.events, event)
	return true
}

// EventStatus reports an event's signaled state.
func (d *Dispatcher) EventStatus(event uint64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.events[event]
	if !ok {
		return ResultErrorInitializationFailed
	}
	if entry.signaled {
		return ResultEventSet
	}
	return ResultEventReset
}

// SetEvent signals event.
func (d *Dispatcher) SetEvent(event uint64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.events[event]
	if !ok {
		return ResultErrorInitializationFailed
	}
	entry.signaled = true
	d.events[event] = entry
	return ResultSuccess
}

// ResetEvent unsignals event.
func (d *Dispatcher) ResetEvent(event uint64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.events[event]
	if !ok {
		return ResultErrorInitializationFailed
	}
	entry.signaled = false
	d.events[event] = entry
	return ResultSuccess
}

// --- Device lifetime ---

// RemoveDevice cascades destruction across every sync-object category
// owned by device, mirroring sync_manager.cpp's remove_device.
func (d *Dispatcher) RemoveDevice(device uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for handle, entry := range d.fences {
		if entry.device == device {
			delete(d.fences, handle)
		}
	}
	for handle, entry := range d.semaphores {
		if entry.device == device {
			delete(d.semaphores, handle)
		}
	}
	for handle, entry := range d.events {
		if entry.device == device {
			delete(d.events, handle)
		}
	}
}

// Dispatcher-side counters, registered once at package init. Following
// etalazz-vsa/internal/ratelimiter/telemetry/churn/prom_counters.go's
// shape: package-level metric vars, no label cardinality, a single
// MustRegister call.
var (
	fencesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vpls_fakegpu_fences_created_total",
		Help: "Total fences allocated by the fake GPU dispatcher.",
	})
	semaphoresCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vpls_fakegpu_semaphores_created_total",
		Help: "Total semaphores allocated by the fake GPU dispatcher.",
	})
)

func init() {
	prometheus.MustRegister(fencesCreatedTotal, semaphoresCreatedTotal)
}
