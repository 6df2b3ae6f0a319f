package codec

// RegistryVersion and WireFormatVersion are embedded in the binary and
// exchanged during the transport handshake so client and server can
// refuse to talk to an incompatible peer (spec.md §4.1, "Commands":
// "the registry version and the wire-format version are both embedded
// in the binary as uint32_t constants, accessible for handshake").
//
// RegistryVersion tracks the machine-readable Vulkan XML registry this
// build's generated command routines were derived from; WireFormatVersion
// tracks this package's own encode/decode layout. Bump WireFormatVersion
// whenever a wire primitive's byte layout changes, independent of
// RegistryVersion.
const (
	RegistryVersion   uint32 = 1
	WireFormatVersion uint32 = 1
)
