// Package codec implements the Command Stream Codec (spec.md §4.1):
// bit-exact encode/decode of scalars, arrays, strings, blobs, nullable
// pointers, object handles and structure chains onto a byte stream
// suitable for length-framed transport.
//
// Encoders and decoders never return an error from a write or read step;
// instead they flip a fatal bit and every subsequent operation becomes a
// no-op (spec.md §4.1, "Failure model"), mirroring the original's
// vn_cs_encoder/vn_cs_decoder pair exactly: acquire/release, offset,
// fatal, and (for decoders) a temporary allocation arena.
package codec

// Encoder is a single-writer byte-stream builder. It is either
// external-backed (a fixed-capacity buffer supplied at Init time, where
// writing past capacity marks the encoder fatal) or dynamic (a growable
// backing slice).
type Encoder struct {
	data     []byte
	offset   int
	capacity int // only meaningful when !dynamic
	dynamic  bool
	fatal    bool
	busy     bool
}

// NewExternalEncoder wraps a fixed-capacity buffer. Writing beyond cap(buf)
// marks the encoder fatal rather than growing it.
func NewExternalEncoder(buf []byte) *Encoder {
	return &Encoder{data: buf[:0], capacity: cap(buf)}
}

// NewDynamicEncoder creates a growable encoder with an initial capacity hint.
func NewDynamicEncoder(sizeHint int) *Encoder {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Encoder{data: make([]byte, 0, sizeHint), dynamic: true}
}

// Acquire claims single-writer ownership of the encoder and resets it
// for a fresh encode, failing if it is already acquired (spec.md §4.1,
// "Encoders").
func (e *Encoder) Acquire() bool {
	if e.busy {
		return false
	}
	e.busy = true
	e.offset = 0
	e.fatal = false
	e.data = e.data[:0]
	return true
}

// Release relinquishes single-writer ownership.
func (e *Encoder) Release() {
	e.busy = false
}

// Fatal reports whether the encoder has poisoned itself.
func (e *Encoder) Fatal() bool {
	return e.fatal
}

// SetFatal forces the fatal bit, e.g. on an unrecognized pNext sType.
func (e *Encoder) SetFatal() {
	e.fatal = true
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return e.offset
}

// Bytes returns the encoded bytes. The result aliases the encoder's
// internal buffer and is invalidated by the next Acquire.
func (e *Encoder) Bytes() []byte {
	return e.data[:e.offset]
}

// reserve ensures n more bytes can be written, setting fatal if an
// external encoder's capacity would be exceeded.
func (e *Encoder) reserve(n int) bool {
	if e.fatal {
		return false
	}
	required := e.offset + n
	if e.dynamic {
		if cap(e.data) < required {
			grown := make([]byte, len(e.data), required*2+16)
			copy(grown, e.data)
			e.data = grown
		}
		if len(e.data) < required {
			e.data = e.data[:required]
		}
		return true
	}
	if required > e.capacity {
		e.fatal = true
		return false
	}
	if len(e.data) < required {
		e.data = e.data[:required]
	}
	return true
}

// write copies value into the next n bytes, zero-padding if value is
// shorter than n. A no-op if the encoder is already fatal.
func (e *Encoder) write(n int, value []byte) {
	if e.fatal {
		return
	}
	if !e.reserve(n) {
		return
	}
	dst := e.data[e.offset : e.offset+n]
	copied := copy(dst, value)
	for i := copied; i < n; i++ {
		dst[i] = 0
	}
	e.offset += n
}

// pad4 rounds n up to the next multiple of 4, the padding width every
// wire primitive in spec.md §4.1 shares.
func pad4(n int) int {
	return (n + 3) &^ 3
}
