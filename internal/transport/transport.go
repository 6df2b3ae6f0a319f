// Package transport carries framed command-stream payloads between
// client and server: exactly one full frame per Send/Receive pair,
// blocking I/O throughout (spec.md §6, "Transport").
package transport

// Transport sends and receives whole frame payloads. Send and Receive
// must each either deliver/consume the complete payload or return an
// error — a short write or short read is always an error, never a
// partial result (spec.md §6: "read must consume exactly the advertised
// number of bytes or fail; write must deliver all bytes or fail").
type Transport interface {
	Send(payload []byte) error
	Receive() ([]byte, error)
	Close() error
}
