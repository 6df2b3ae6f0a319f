package codec

import (
	"encoding/binary"

	"github.com/venusplus/vpls/internal/objid"
)

// Scalars 4 bytes wide or more encode at native width; narrower ones
// pad to 4 bytes (spec.md §4.1, "Wire primitives"). All multi-byte
// values are little-endian, matching the platform this driver targets.

// WriteUint8 writes b padded to 4 bytes.
func (e *Encoder) WriteUint8(b uint8) {
	e.write(4, []byte{b})
}

// WriteUint16 writes v padded to 4 bytes.
func (e *Encoder) WriteUint16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	e.write(4, buf[:])
}

// WriteUint32 writes v at native width.
func (e *Encoder) WriteUint32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	e.write(4, buf[:])
}

// WriteUint64 writes v at native width.
func (e *Encoder) WriteUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	e.write(8, buf[:])
}

// WriteInt32 writes v at native width.
func (e *Encoder) WriteInt32(v int32) {
	e.WriteUint32(uint32(v))
}

func (d *Decoder) ReadUint8() uint8 {
	var buf [4]byte
	d.read(4, buf[:])
	return buf[0]
}

func (d *Decoder) ReadUint16() uint16 {
	var buf [4]byte
	d.read(4, buf[:])
	return binary.LittleEndian.Uint16(buf[:2])
}

func (d *Decoder) ReadUint32() uint32 {
	var buf [4]byte
	d.read(4, buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

func (d *Decoder) ReadUint64() uint64 {
	var buf [8]byte
	d.read(8, buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

func (d *Decoder) ReadInt32() int32 {
	return int32(d.ReadUint32())
}

// WriteUint32Array encodes a contiguous array of native-width scalars,
// padded to a multiple of 4 (it already is, since each element is 4
// bytes); no length prefix — the caller communicates the count
// out-of-band (e.g. from the command's fixed arity), per spec.md §4.1's
// distinction between scalar arrays and length-prefixed arrays.
func (e *Encoder) WriteUint32Array(vals []uint32) {
	for _, v := range vals {
		e.WriteUint32(v)
	}
}

// ReadUint32Array decodes count native-width scalars into a newly
// allocated slice.
func (d *Decoder) ReadUint32Array(count int) []uint32 {
	out := make([]uint32, count)
	for i := range out {
		out[i] = d.ReadUint32()
	}
	return out
}

// WriteCountedArray writes a length-prefixed array of non-scalar
// elements: a uint64 count followed by count element encodings
// (spec.md §4.1).
func WriteCountedArray[T any](e *Encoder, items []T, encodeElem func(*Encoder, T)) {
	e.WriteUint64(uint64(len(items)))
	for _, item := range items {
		encodeElem(e, item)
	}
}

// ReadCountedArray reads a length-prefixed array written by
// WriteCountedArray. The count is widened through uint64 on the wire; a
// count too large for an int, or a decoder already fatal after reading
// the count, marks the decoder fatal and yields a nil slice.
func ReadCountedArray[T any](d *Decoder, decodeElem func(*Decoder) T) []T {
	count := d.ReadUint64()
	if d.fatal || count > uint64(^uint(0)>>1) {
		d.fatal = true
		return nil
	}
	out := make([]T, 0, count)
	for i := uint64(0); i < count; i++ {
		if d.fatal {
			break
		}
		out = append(out, decodeElem(d))
	}
	return out
}

// WriteString encodes s as a byte array of the declared capacity,
// padded to 4 bytes (spec.md §4.1). s is truncated if it does not fit
// and the remainder of capacity is zero-filled.
func (e *Encoder) WriteString(s string, capacity int) {
	buf := make([]byte, capacity)
	copy(buf, s)
	e.write(pad4(capacity), buf)
}

// ReadString decodes a capacity-byte field written by WriteString,
// nul-terminating on decode (stopping at the first zero byte, or at
// capacity if none is found).
func (d *Decoder) ReadString(capacity int) string {
	buf := make([]byte, pad4(capacity))
	d.read(len(buf), buf)
	n := 0
	for n < capacity && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// WriteBlob encodes an opaque byte blob padded to 4 bytes.
func (e *Encoder) WriteBlob(data []byte) {
	e.write(pad4(len(data)), data)
}

// ReadBlob decodes a size-byte blob from the arena.
func (d *Decoder) ReadBlob(size int) []byte {
	buf := d.allocTemp(pad4(size))
	d.read(len(buf), buf)
	return buf[:size]
}

// WriteNullablePointer encodes a nullable pointer: uint64 0 (absent) or
// 1 (present), followed, if present, by the pointee via encodePointee
// (spec.md §4.1).
func WriteNullablePointer(e *Encoder, present bool, encodePointee func(*Encoder)) {
	if !present {
		e.WriteUint64(0)
		return
	}
	e.WriteUint64(1)
	encodePointee(e)
}

// ReadNullablePointer decodes a nullable pointer written by
// WriteNullablePointer, invoking decodePointee only if present.
func ReadNullablePointer(d *Decoder, decodePointee func(*Decoder)) (present bool) {
	tag := d.ReadUint64()
	if d.fatal || tag == 0 {
		return false
	}
	decodePointee(d)
	return true
}

// WriteHandle encodes an object handle as its server identity, loaded
// from the handle's category-specific namespace; the codec never
// interprets the value (spec.md §4.1, "Object handles").
func (e *Encoder) WriteHandle(identity objid.ServerIdentity) {
	e.WriteUint64(uint64(identity))
}

// ReadHandle decodes a server identity written by WriteHandle.
func (d *Decoder) ReadHandle() objid.ServerIdentity {
	return objid.ServerIdentity(d.ReadUint64())
}
