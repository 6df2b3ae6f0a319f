package ring

import (
	"errors"
	"sync"
	"testing"

	"github.com/venusplus/vpls/internal/codec"
)

type fakeTransport struct {
	mu       sync.Mutex
	sent     [][]byte
	replies  [][]byte
	sendErr  error
	recvErr  error
	recvCall int
}

func (f *fakeTransport) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	cp := append([]byte(nil), payload...)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeTransport) Receive() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recvErr != nil {
		return nil, f.recvErr
	}
	if f.recvCall >= len(f.replies) {
		return nil, errors.New("fakeTransport: no more replies queued")
	}
	reply := f.replies[f.recvCall]
	f.recvCall++
	return reply, nil
}

func (f *fakeTransport) Close() error { return nil }

func TestSubmit_NoReply(t *testing.T) {
	tr := &fakeTransport{}
	r := NewRing(tr)

	err := r.Submit(Call{
		CommandType: 0x42,
		SizeHint:    16,
		Encode:      func(e *codec.Encoder) { e.WriteUint32(7) },
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(tr.sent) != 1 {
		t.Fatalf("sent %d payloads, want 1", len(tr.sent))
	}

	d := codec.NewDecoder(tr.sent[0])
	header := d.ReadCommandHeader()
	if header.CommandType != 0x42 {
		t.Errorf("CommandType = %#x, want 0x42", header.CommandType)
	}
	if header.Flags.ExpectsReply() {
		t.Error("ExpectsReply() = true, want false for a no-reply call")
	}
	if got := d.ReadUint32(); got != 7 {
		t.Errorf("argument = %d, want 7", got)
	}
}

func TestSubmit_WithReply(t *testing.T) {
	replyEnc := codec.NewDynamicEncoder(16)
	replyEnc.Acquire()
	replyEnc.WriteUint32(99)

	tr := &fakeTransport{replies: [][]byte{replyEnc.Bytes()}}
	r := NewRing(tr)

	var decoded uint32
	err := r.Submit(Call{
		CommandType: 1,
		ExpectReply: true,
		SizeHint:    16,
		Encode:      func(e *codec.Encoder) { e.WriteUint32(1) },
		Decode:      func(d *codec.Decoder) { decoded = d.ReadUint32() },
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if decoded != 99 {
		t.Errorf("decoded = %d, want 99", decoded)
	}

	header := codec.NewDecoder(tr.sent[0]).ReadCommandHeader()
	if !header.Flags.ExpectsReply() {
		t.Error("ExpectsReply() = false, want true for a reply-bearing call")
	}
}

func TestSubmit_SendFailureMarksDeviceLost(t *testing.T) {
	tr := &fakeTransport{sendErr: errors.New("connection reset")}
	r := NewRing(tr)

	err := r.Submit(Call{
		CommandType: 1,
		SizeHint:    16,
		Encode:      func(e *codec.Encoder) {},
	})
	var lost *DeviceLostError
	if !errors.As(err, &lost) {
		t.Errorf("Submit() error = %v, want *DeviceLostError", err)
	}
}

func TestSubmit_ReceiveFailureMarksDeviceLost(t *testing.T) {
	tr := &fakeTransport{recvErr: errors.New("closed")}
	r := NewRing(tr)

	err := r.Submit(Call{
		CommandType: 1,
		ExpectReply: true,
		SizeHint:    16,
		Encode:      func(e *codec.Encoder) {},
		Decode:      func(d *codec.Decoder) {},
	})
	var lost *DeviceLostError
	if !errors.As(err, &lost) {
		t.Errorf("Submit() error = %v, want *DeviceLostError", err)
	}
}

func TestSubmit_EncoderOverflowReturnsOutOfHostMemory(t *testing.T) {
	tr := &fakeTransport{}
	r := NewRing(tr)

	err := r.Submit(Call{
		CommandType: 1,
		SizeHint:    8, // smaller than what Encode will try to write
		Encode: func(e *codec.Encoder) {
			for i := 0; i < 64; i++ {
				e.WriteUint64(uint64(i))
			}
		},
	})
	var vkErr *VulkanError
	if !errors.As(err, &vkErr) || vkErr.Result != ResultErrorOutOfHostMemory {
		t.Errorf("Submit() error = %v, want ResultErrorOutOfHostMemory", err)
	}
	if len(tr.sent) != 0 {
		t.Error("a fatal encoder must never be sent")
	}
}

func TestVulkanError_WrapsEncoderBusy(t *testing.T) {
	err := &VulkanError{Result: ResultErrorOutOfHostMemory, Op: "acquire encoder", Cause: ErrEncoderBusy}
	if !errors.Is(err, ErrEncoderBusy) {
		t.Errorf("errors.Is(err, ErrEncoderBusy) = false, want true for %v", err)
	}
	var vkErr *VulkanError
	if !errors.As(err, &vkErr) || vkErr.Result != ResultErrorOutOfHostMemory {
		t.Errorf("Submit() error = %v, want ResultErrorOutOfHostMemory", err)
	}
}

func TestSubmit_DecodeFatalReturnsOutOfHostMemory(t *testing.T) {
	tr := &fakeTransport{replies: [][]byte{{1, 2, 3}}} // too short to decode a uint64 reply
	r := NewRing(tr)

	err := r.Submit(Call{
		CommandType: 1,
		ExpectReply: true,
		SizeHint:    16,
		Encode:      func(e *codec.Encoder) {},
		Decode:      func(d *codec.Decoder) { d.ReadUint64() },
	})
	var vkErr *VulkanError
	if !errors.As(err, &vkErr) || vkErr.Result != ResultErrorOutOfHostMemory {
		t.Errorf("Submit() error = %v, want ResultErrorOutOfHostMemory", err)
	}
}
