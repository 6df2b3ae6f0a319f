package objid

import "errors"

// Sentinel errors returned by Store/Allocator consumers (principally
// internal/registry.Registry) when a handle fails validation.
var (
	// ErrInvalidHandle is returned for a zero or malformed handle.
	ErrInvalidHandle = errors.New("objid: invalid handle")

	// ErrNotFound is returned when a handle's index was never allocated.
	ErrNotFound = errors.New("objid: object not found")

	// ErrEpochMismatch is returned when a handle's epoch no longer
	// matches the slot's current generation: the object it once named
	// was destroyed and its index recycled.
	ErrEpochMismatch = errors.New("objid: epoch mismatch, handle recycled")
)
