// Package wire implements the external wire frame format (spec.md §6):
// a magic-tagged, length-prefixed envelope around a command-stream
// payload, read and written with the read-exact-or-fail /
// write-all-or-fail discipline spec.md's Transport section requires.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic identifies a Venus Plus frame ("VPLS"); a mismatched magic is a
// fatal protocol error that closes the transport (spec.md §6).
const Magic uint32 = 0x56504C53

// headerSize is the byte length of the magic+size prefix.
const headerSize = 8

// ErrBadMagic is returned by ReadFrame when the leading magic does not
// match Magic.
var ErrBadMagic = fmt.Errorf("wire: bad frame magic")

// WriteFrame writes payload to w as a single VPLS frame, failing unless
// every byte is delivered.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads a single VPLS frame from r, consuming exactly the
// advertised number of payload bytes or failing.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("wire: read frame header: %w", err)
	}

	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != Magic {
		return nil, ErrBadMagic
	}

	size := binary.LittleEndian.Uint32(header[4:8])
	payload := make([]byte, size)
	if size == 0 {
		return payload, nil
	}
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("wire: read frame payload: %w", err)
	}
	return payload, nil
}
