package ring

import (
	"sync"

	"github.com/venusplus/vpls/internal/codec"
	"github.com/venusplus/vpls/internal/transport"
)

// inlineThreshold is the compile-time size below which Submit uses a
// stack-sized fixed buffer rather than a heap-growing one (spec.md
// §4.4 step 2).
const inlineThreshold = 256

// Call is everything a generated routine needs the ring to sequence:
// the command-type discriminant, whether a reply is expected, a size
// estimate, and the encode/decode callbacks themselves.
type Call struct {
	CommandType uint32
	ExpectReply bool
	SizeHint    int
	Encode      func(e *codec.Encoder)
	Decode      func(d *codec.Decoder)
}

// Ring sequences one Vulkan call end to end over a transport (spec.md
// §4.4). It holds the transport's effective lock across send+receive
// for reply-bearing calls, the "one in-flight reply-bearing call per
// transport at a time" rule from spec.md §5.
type Ring struct {
	transport transport.Transport
	replyMu   sync.Mutex
}

// NewRing builds a ring over t.
func NewRing(t transport.Transport) *Ring {
	return &Ring{transport: t}
}

// Submit runs the six-step submit sequence for call: acquire an
// encoder sized for call.SizeHint, invoke call.Encode, send the
// result, and — if call.ExpectReply — block for one reply frame and
// invoke call.Decode on it.
func (r *Ring) Submit(call Call) error {
	e := newCallEncoder(call.SizeHint)
	if !e.Acquire() {
		return &VulkanError{Result: ResultErrorOutOfHostMemory, Op: "acquire encoder", Cause: ErrEncoderBusy}
	}
	defer e.Release()

	flags := codec.CommandFlags(0)
	if call.ExpectReply {
		flags = codec.FlagExpectReply
	}
	e.WriteCommandHeader(codec.CommandHeader{CommandType: call.CommandType, Flags: flags})
	call.Encode(e)

	if e.Fatal() {
		return &VulkanError{Result: ResultErrorOutOfHostMemory, Op: "encode"}
	}
	payload := e.Bytes()
	if len(payload) == 0 {
		return &VulkanError{Result: ResultErrorOutOfHostMemory, Op: "empty encoding"}
	}

	if call.ExpectReply {
		r.replyMu.Lock()
		defer r.replyMu.Unlock()
	}

	if err := r.transport.Send(payload); err != nil {
		return &DeviceLostError{Cause: err}
	}
	if !call.ExpectReply {
		return nil
	}

	reply, err := r.transport.Receive()
	if err != nil {
		return &DeviceLostError{Cause: err}
	}

	d := codec.NewDecoder(reply)
	defer d.ResetTemp()
	call.Decode(d)
	if d.Fatal() {
		return &VulkanError{Result: ResultErrorOutOfHostMemory, Op: "decode reply"}
	}
	return nil
}

// newCallEncoder picks a fixed-capacity encoder for small calls and a
// growable one otherwise, matching spec.md §4.4 step 2's stack-local /
// heap split.
func newCallEncoder(sizeHint int) *codec.Encoder {
	if sizeHint > 0 && sizeHint <= inlineThreshold {
		return codec.NewExternalEncoder(make([]byte, 0, inlineThreshold))
	}
	return codec.NewDynamicEncoder(sizeHint)
}
