package codec

// Decoder wraps an immutable byte window. Every read advances the
// offset; a read past the end, or an explicit SetFatal, poisons the
// decoder so subsequent reads become no-ops that write zeros (spec.md
// §4.1, "Decoders"). Decoders own a temporary allocation arena used to
// materialise decoded arrays/blobs; ResetTemp releases it between
// commands, mirroring the original's temp_buffers vector.
type Decoder struct {
	data   []byte
	offset int
	fatal  bool
	arena  [][]byte
}

// NewDecoder wraps data for reading. data is not copied; the caller
// must not mutate it for the decoder's lifetime.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Fatal reports whether the decoder has poisoned itself.
func (d *Decoder) Fatal() bool {
	return d.fatal
}

// SetFatal forces the fatal bit, e.g. on an unrecognized pNext sType.
func (d *Decoder) SetFatal() {
	d.fatal = true
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	if d.fatal {
		return 0
	}
	return len(d.data) - d.offset
}

// ResetTemp releases every temp-arena allocation made since the last
// reset, for reuse between commands.
func (d *Decoder) ResetTemp() {
	d.arena = d.arena[:0]
}

// allocTemp returns a freshly zeroed n-byte slice owned by the arena.
func (d *Decoder) allocTemp(n int) []byte {
	buf := make([]byte, n)
	d.arena = append(d.arena, buf)
	return buf
}

// read copies the next n bytes into out (zero-padding out past what was
// available is never needed here: a short read is always fatal). On
// fatal or past-end, out is zeroed and the decoder is poisoned.
func (d *Decoder) read(n int, out []byte) {
	if d.fatal || d.offset+n > len(d.data) {
		d.fatal = true
		for i := range out {
			out[i] = 0
		}
		return
	}
	copy(out, d.data[d.offset:d.offset+n])
	d.offset += n
}

// peek is like read but does not advance the offset.
func (d *Decoder) peek(n int, out []byte) {
	if d.fatal || d.offset+n > len(d.data) {
		d.fatal = true
		for i := range out {
			out[i] = 0
		}
		return
	}
	copy(out, d.data[d.offset:d.offset+n])
}

// skip advances the offset by n without copying, poisoning on overrun.
func (d *Decoder) skip(n int) {
	if d.fatal || d.offset+n > len(d.data) {
		d.fatal = true
		return
	}
	d.offset += n
}
