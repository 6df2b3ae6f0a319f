// Package lifecycle implements the Lifecycle & Sync Tracker (spec.md
// §4.2): command-buffer parent/child relations and state machine,
// descriptor-binding dirty-elision, and fence/semaphore/event caches.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/venusplus/vpls/internal/objid"
	"github.com/venusplus/vpls/internal/registry"
)

// ErrWrongState is returned when a command-buffer transition is
// attempted from a state that does not permit it.
var ErrWrongState = errors.New("lifecycle: command buffer in wrong state for this operation")

// Tracker drives the command-buffer state machine and pool cascades on
// top of the registry table (spec.md §4.2's "Command-buffer lifecycle").
type Tracker struct {
	table *registry.Table
}

// NewTracker builds a lifecycle tracker over the given registry table.
func NewTracker(table *registry.Table) *Tracker {
	return &Tracker{table: table}
}

// Begin transitions cb INITIAL -> RECORDING. Re-recording an EXECUTABLE
// or INVALID buffer is also permitted (the pool-implicit-reset path);
// already-RECORDING buffers are rejected.
func (t *Tracker) Begin(cb objid.CommandBufferHandle) error {
	state, err := t.table.CommandBuffers.Get(cb)
	if err != nil {
		return fmt.Errorf("lifecycle: begin: %w", err)
	}
	switch state.State {
	case registry.CommandBufferInitial, registry.CommandBufferExecutable, registry.CommandBufferInvalid:
	default:
		return fmt.Errorf("lifecycle: begin from %s: %w", state.State, ErrWrongState)
	}

	return t.table.CommandBuffers.GetMut(cb, func(c *registry.CommandBuffer) {
		c.State = registry.CommandBufferRecording
		c.UsageFlags = 0
		c.BindSnapshots = nil
		c.Recorded = nil
	})
}

// End transitions cb RECORDING -> EXECUTABLE. Per the Open Question
// decision recorded for this driver, EXECUTABLE is a real, reachable
// state — vkQueueSubmit-equivalent validation requires it.
func (t *Tracker) End(cb objid.CommandBufferHandle) error {
	state, err := t.table.CommandBuffers.Get(cb)
	if err != nil {
		return fmt.Errorf("lifecycle: end: %w", err)
	}
	if state.State != registry.CommandBufferRecording {
		return fmt.Errorf("lifecycle: end from %s: %w", state.State, ErrWrongState)
	}
	return t.table.CommandBuffers.GetMut(cb, func(c *registry.CommandBuffer) {
		c.State = registry.CommandBufferExecutable
	})
}

// Reset transitions cb to INITIAL regardless of its current state,
// clearing usage flags and the descriptor-bind cache but leaving pool
// and level untouched (original_source/client/state/command_buffer_state.cpp).
func (t *Tracker) Reset(cb objid.CommandBufferHandle) error {
	return t.table.CommandBuffers.GetMut(cb, func(c *registry.CommandBuffer) {
		c.State = registry.CommandBufferInitial
		c.UsageFlags = 0
		c.BindSnapshots = nil
		c.Recorded = nil
	})
}

// Invalidate marks cb INVALID, sticky until the next Begin/Reset. Used
// for per-buffer invalidation (e.g. a referenced resource was destroyed)
// as well as the device-lost cascade driven by SetDeviceLost below.
func (t *Tracker) Invalidate(cb objid.CommandBufferHandle) error {
	return t.table.CommandBuffers.GetMut(cb, func(c *registry.CommandBuffer) {
		c.State = registry.CommandBufferInvalid
		c.UsageFlags = 0
		c.BindSnapshots = nil
		c.Recorded = nil
	})
}

// ResetPool puts every command buffer owned by pool back to INITIAL and
// clears its descriptor cache and usage flags (spec.md §4.2, "Pool reset").
func (t *Tracker) ResetPool(pool objid.CommandPoolHandle) error {
	cp, err := t.table.CommandPools.Get(pool)
	if err != nil {
		return fmt.Errorf("lifecycle: reset pool: %w", err)
	}
	for _, cb := range cp.CommandBuffers {
		if err := t.Reset(cb); err != nil {
			return err
		}
	}
	return nil
}

// SetDeviceLost cascades a device-lost event to every command buffer
// owned by the device: set_state(INVALID) clears usage and descriptor
// cache (spec.md §3, "Cascade rules").
func (t *Tracker) SetDeviceLost(device objid.DeviceHandle) error {
	if err := t.table.Devices.GetMut(device, func(d *registry.Device) {
		d.Lost = true
	}); err != nil {
		return fmt.Errorf("lifecycle: set device lost: %w", err)
	}

	var affected []objid.CommandBufferHandle
	t.table.CommandPools.ForEach(func(_ objid.CommandPoolHandle, cp registry.CommandPool) bool {
		if cp.Parent == device {
			affected = append(affected, cp.CommandBuffers...)
		}
		return true
	})
	for _, cb := range affected {
		if err := t.Invalidate(cb); err != nil {
			return err
		}
	}
	return nil
}
